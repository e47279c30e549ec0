package model

import (
	"sort"
	"strings"
	"time"
)

// Link is one outbound link card in a uid's collection.
//
// Order is the sort key; zero means "unset" and sorts first. Ties break by ID,
// and since IDs are xids they sort by creation time.
type Link struct {
	ID          string    `json:"id"`
	UID         string    `json:"-"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"` // stored as entered; see Href
	Icon        Icon      `json:"icon"`
	Order       int64     `json:"order"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Href returns the URL a visitor is sent to. A URL without a scheme gets
// "https://" prepended; the stored URL is left untouched.
func (l Link) Href() string {
	return NormalizeURL(l.URL)
}

// NormalizeURL prefixes https:// when raw has no scheme.
//
//	example.com           → https://example.com
//	http://example.com    → http://example.com
//	mailto:me@example.com → mailto:me@example.com
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return raw
	}
	return "https://" + strings.TrimPrefix(raw, "//")
}

// LinkInput carries the caller-supplied fields of a new Link.
type LinkInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
}

// LinkUpdate is a partial update of one Link. Nil fields are untouched.
type LinkUpdate struct {
	Title       *string
	Description *string
	URL         *string
	Icon        *string
	Order       *int64
}

// IsEmpty reports whether u would change nothing.
func (u LinkUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.URL == nil &&
		u.Icon == nil && u.Order == nil
}

// Apply merges u into l in place.
func (u LinkUpdate) Apply(l *Link) {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.URL != nil {
		l.URL = *u.URL
	}
	if u.Icon != nil {
		l.Icon = ParseIcon(*u.Icon)
	}
	if u.Order != nil {
		l.Order = *u.Order
	}
}

// SortLinks orders links ascending by Order, then by ID. The result is
// deterministic for any input permutation.
func SortLinks(links []Link) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Order != links[j].Order {
			return links[i].Order < links[j].Order
		}
		return links[i].ID < links[j].ID
	})
}
