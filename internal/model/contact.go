// Package model defines the data structures shared by the stores, services
// and handlers.
package model

import "strings"

// Channel names one contact handle a profile can display (instagram, email, ...).
// The set is closed: anything outside DefaultContactOrder is ignored for display.
type Channel string

const (
	ChannelInstagram Channel = "instagram"
	ChannelGitHub    Channel = "github"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelEmail     Channel = "email"
	ChannelMobile    Channel = "mobile"
	ChannelFacebook  Channel = "facebook"
	ChannelDiscord   Channel = "discord"
	ChannelTikTok    Channel = "tiktok"
	ChannelYouTube   Channel = "youtube"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelTelegram  Channel = "telegram"
	ChannelTwitter   Channel = "twitter"
)

// DefaultContactOrder is the built-in display order, used when a profile has
// no contactsOrder or one that names no known channel.
var DefaultContactOrder = []Channel{
	ChannelInstagram,
	ChannelGitHub,
	ChannelLinkedIn,
	ChannelEmail,
	ChannelMobile,
	ChannelFacebook,
	ChannelDiscord,
	ChannelTikTok,
	ChannelYouTube,
	ChannelWhatsApp,
	ChannelTelegram,
	ChannelTwitter,
}

// ParseChannel maps a raw channel name onto the closed enum.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseChannel(raw string) (Channel, bool) {
	c := Channel(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range DefaultContactOrder {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Contacts holds the value of every known channel. Empty means unset.
type Contacts struct {
	Instagram string `json:"instagram,omitempty"`
	GitHub    string `json:"github,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Email     string `json:"email,omitempty"`
	Mobile    string `json:"mobile,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Discord   string `json:"discord,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	WhatsApp  string `json:"whatsapp,omitempty"`
	Telegram  string `json:"telegram,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
}

// Field returns a pointer to the struct field backing ch, or nil for an
// unknown channel.
func (c *Contacts) Field(ch Channel) *string {
	switch ch {
	case ChannelInstagram:
		return &c.Instagram
	case ChannelGitHub:
		return &c.GitHub
	case ChannelLinkedIn:
		return &c.LinkedIn
	case ChannelEmail:
		return &c.Email
	case ChannelMobile:
		return &c.Mobile
	case ChannelFacebook:
		return &c.Facebook
	case ChannelDiscord:
		return &c.Discord
	case ChannelTikTok:
		return &c.TikTok
	case ChannelYouTube:
		return &c.YouTube
	case ChannelWhatsApp:
		return &c.WhatsApp
	case ChannelTelegram:
		return &c.Telegram
	case ChannelTwitter:
		return &c.Twitter
	}
	return nil
}

// Get returns the value stored for ch ("" for unset or unknown channels).
func (c Contacts) Get(ch Channel) string {
	if f := c.Field(ch); f != nil {
		return *f
	}
	return ""
}

// Set stores value for ch. It reports false for an unknown channel.
func (c *Contacts) Set(ch Channel, value string) bool {
	f := c.Field(ch)
	if f == nil {
		return false
	}
	*f = value
	return true
}

// ContactEntry is one populated channel, ready for display.
type ContactEntry struct {
	Channel Channel `json:"channel"`
	Value   string  `json:"value"`
}

// OrderedChannels turns a stored contactsOrder into a full display order.
//
// Unknown and repeated names are dropped. Channels the order does not
// mention follow in DefaultContactOrder. An absent order, or one naming no
// known channel, yields DefaultContactOrder itself.
func OrderedChannels(order []string) []Channel {
	seen := make(map[Channel]bool, len(DefaultContactOrder))
	result := make([]Channel, 0, len(DefaultContactOrder))

	for _, raw := range order {
		ch, ok := ParseChannel(raw)
		if !ok || seen[ch] {
			continue
		}
		seen[ch] = true
		result = append(result, ch)
	}
	if len(result) == 0 {
		return append(result, DefaultContactOrder...)
	}

	for _, ch := range DefaultContactOrder {
		if !seen[ch] {
			result = append(result, ch)
		}
	}
	return result
}

// DisplayContacts returns the populated channels in display order.
func DisplayContacts(contacts Contacts, order []string) []ContactEntry {
	entries := make([]ContactEntry, 0)
	for _, ch := range OrderedChannels(order) {
		if v := strings.TrimSpace(contacts.Get(ch)); v != "" {
			entries = append(entries, ContactEntry{Channel: ch, Value: v})
		}
	}
	return entries
}
