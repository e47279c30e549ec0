package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// derivedBaseLength leaves room for a numeric suffix under MaxUsernameLength.
const derivedBaseLength = MaxUsernameLength - 4

// DeriveUsername builds a username candidate from sign-in hints: the
// provider handle if any, else the display name, else the email local part.
//
// Accents are folded ("José" → "jose"), whitespace removed, '.' and '-'
// become '_', and anything else outside [a-z0-9_] is dropped. Short results
// are padded to the minimum length; an empty one becomes "user".
func DeriveUsername(handle, displayName, email string) string {
	for _, src := range []string{handle, displayName, emailLocalPart(email)} {
		if name := foldUsername(src); name != "" {
			return pad(truncate(name))
		}
	}
	return "user"
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// foldAccents returns a fresh chain on each call. A transform.Chain keeps
// internal buffers and must not be shared between goroutines.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

func foldUsername(s string) string {
	folded, _, err := transform.String(foldAccents(), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		switch {
		case isUsernameRune(r):
			b.WriteRune(r)
		case r == '.' || r == '-':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func truncate(s string) string {
	if len(s) > derivedBaseLength {
		return strings.TrimRight(s[:derivedBaseLength], "_")
	}
	return s
}

func pad(s string) string {
	if len(s) < MinUsernameLength {
		s += strings.Repeat("_", MinUsernameLength-len(s))
	}
	return s
}
