package repository

import (
	"encoding/json"

	"github.com/sakif/linkbio/internal/model"
)

// Assignment is one "column = value" pair of a partial UPDATE. Backends render
// the placeholder syntax themselves.
type Assignment struct {
	Column string
	Value  any
}

// ContactColumn names the profile column backing ch.
func ContactColumn(ch model.Channel) string {
	return "contact_" + string(ch)
}

// ProfileColumns is the SELECT list shared by both backends. Its order matches
// ProfileScanTargets. Nullable columns are coalesced so they scan into plain strings.
var ProfileColumns = func() string {
	cols := "uid, username, display_name, bio, location, photo"
	for _, ch := range model.DefaultContactOrder {
		cols += ", " + ContactColumn(ch)
	}
	return cols + ", COALESCE(contacts_order, ''), provider, created_at, updated_at"
}()

// ProfileInsertColumns lists the columns written by Create, in the order of
// ProfileInsertValues.
var ProfileInsertColumns = func() []string {
	cols := []string{"uid", "username", "display_name", "bio", "location", "photo"}
	for _, ch := range model.DefaultContactOrder {
		cols = append(cols, ContactColumn(ch))
	}
	return append(cols, "contacts_order", "provider", "created_at", "updated_at")
}()

// ProfileInsertValues returns the values for ProfileInsertColumns.
func ProfileInsertValues(p *model.Profile) []any {
	vals := []any{p.UID, p.Username, p.DisplayName, p.Bio, p.Location, p.Photo}
	for _, ch := range model.DefaultContactOrder {
		vals = append(vals, p.Contacts.Get(ch))
	}
	return append(vals, EncodeContactsOrder(p.ContactsOrder), p.Provider, p.CreatedAt, p.UpdatedAt)
}

// ProfileScanTargets returns the Scan destinations for ProfileColumns. The raw
// contacts order lands in *order and must be passed through DecodeContactsOrder.
func ProfileScanTargets(p *model.Profile, order *string) []any {
	dest := []any{&p.UID, &p.Username, &p.DisplayName, &p.Bio, &p.Location, &p.Photo}
	for _, ch := range model.DefaultContactOrder {
		dest = append(dest, p.Contacts.Field(ch))
	}
	return append(dest, order, &p.Provider, &p.CreatedAt, &p.UpdatedAt)
}

// ProfileAssignments maps a partial update onto columns. Contact channels are
// emitted in DefaultContactOrder so the generated SQL is deterministic.
func ProfileAssignments(u model.ProfileUpdate) []Assignment {
	var set []Assignment
	if u.DisplayName != nil {
		set = append(set, Assignment{"display_name", *u.DisplayName})
	}
	if u.Bio != nil {
		set = append(set, Assignment{"bio", *u.Bio})
	}
	if u.Location != nil {
		set = append(set, Assignment{"location", *u.Location})
	}
	if u.Photo != nil {
		set = append(set, Assignment{"photo", *u.Photo})
	}
	for _, ch := range model.DefaultContactOrder {
		if v, ok := u.Contacts[ch]; ok {
			set = append(set, Assignment{ContactColumn(ch), v})
		}
	}
	if u.ContactsOrder != nil {
		set = append(set, Assignment{"contacts_order", EncodeContactsOrder(u.ContactsOrder)})
	}
	return set
}

// LinkAssignments maps a partial link update onto columns.
func LinkAssignments(u model.LinkUpdate) []Assignment {
	var set []Assignment
	if u.Title != nil {
		set = append(set, Assignment{"title", *u.Title})
	}
	if u.Description != nil {
		set = append(set, Assignment{"description", *u.Description})
	}
	if u.URL != nil {
		set = append(set, Assignment{"url", *u.URL})
	}
	if u.Icon != nil {
		set = append(set, Assignment{"icon", string(model.ParseIcon(*u.Icon))})
	}
	if u.Order != nil {
		set = append(set, Assignment{"sort_order", *u.Order})
	}
	return set
}

// EncodeContactsOrder serializes the stored order. An empty order is stored
// as NULL so reads fall back to the default.
func EncodeContactsOrder(order []string) any {
	if len(order) == 0 {
		return nil
	}
	b, err := json.Marshal(order)
	if err != nil {
		return nil
	}
	return string(b)
}

// DecodeContactsOrder parses a stored order. Malformed values decode to nil,
// which displays in the default order.
func DecodeContactsOrder(raw string) []string {
	if raw == "" {
		return nil
	}
	var order []string
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil
	}
	return order
}
