package model

import "time"

// Profile is the public face of one uid: who they are and how to reach them.
//
// Username is a denormalized copy of the active username reservation. It is
// never used as a lookup key; resolution goes through the registry first.
type Profile struct {
	UID           string    `json:"uid"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"displayName"`
	Bio           string    `json:"bio"`
	Location      string    `json:"location"`
	Photo         string    `json:"photo"` // URI or inline-encoded image, opaque to the core
	Contacts      Contacts  `json:"contacts"`
	ContactsOrder []string  `json:"contactsOrder,omitempty"` // stored verbatim, sanitized on display
	Provider      string    `json:"provider,omitempty"`      // identity provider that created the account
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DisplayContacts returns the populated contact channels of p in display order.
func (p Profile) DisplayContacts() []ContactEntry {
	return DisplayContacts(p.Contacts, p.ContactsOrder)
}

// ProfileUpdate is a partial update. Nil pointers and absent map keys leave
// the stored value untouched; a present empty string clears it.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	Location    *string
	Photo       *string
	Contacts    map[Channel]string
	// ContactsOrder replaces the stored order when non-nil. An empty,
	// non-nil slice resets to the default order.
	ContactsOrder []string
}

// IsEmpty reports whether u would change nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.DisplayName == nil && u.Bio == nil && u.Location == nil &&
		u.Photo == nil && len(u.Contacts) == 0 && u.ContactsOrder == nil
}

// Apply merges u into p in place. Used by in-memory stores and to build the
// value returned to callers after an update.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.DisplayName != nil {
		p.DisplayName = *u.DisplayName
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Location != nil {
		p.Location = *u.Location
	}
	if u.Photo != nil {
		p.Photo = *u.Photo
	}
	for ch, v := range u.Contacts {
		p.Contacts.Set(ch, v)
	}
	if u.ContactsOrder != nil {
		if len(u.ContactsOrder) == 0 {
			p.ContactsOrder = nil
		} else {
			p.ContactsOrder = append([]string(nil), u.ContactsOrder...)
		}
	}
}
