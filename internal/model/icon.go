package model

import "strings"

// Icon tags the card artwork of a Link. The vocabulary is fixed.
type Icon string

const (
	IconLink      Icon = "link"
	IconGitHub    Icon = "github"
	IconInstagram Icon = "instagram"
	IconLinkedIn  Icon = "linkedin"
	IconYouTube   Icon = "youtube"
	IconTwitter   Icon = "twitter"
	IconEmail     Icon = "email"
	IconMobile    Icon = "mobile"
	IconFacebook  Icon = "facebook"
	IconDiscord   Icon = "discord"
	IconTikTok    Icon = "tiktok"
	IconWhatsApp  Icon = "whatsapp"
	IconTelegram  Icon = "telegram"
)

var knownIcons = map[Icon]bool{
	IconLink: true, IconGitHub: true, IconInstagram: true, IconLinkedIn: true,
	IconYouTube: true, IconTwitter: true, IconEmail: true, IconMobile: true,
	IconFacebook: true, IconDiscord: true, IconTikTok: true, IconWhatsApp: true,
	IconTelegram: true,
}

// ParseIcon normalizes raw onto the vocabulary. Empty or unknown tags become IconLink.
func ParseIcon(raw string) Icon {
	icon := Icon(strings.ToLower(strings.TrimSpace(raw)))
	if knownIcons[icon] {
		return icon
	}
	return IconLink
}
