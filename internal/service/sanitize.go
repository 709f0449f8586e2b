package service

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultName is assigned to identities registered without a name.
	DefaultName = "Anonymous"
	// MaxNameLength caps display names, in characters.
	MaxNameLength = 48
	// MaxTextLength caps message text, in characters.
	MaxTextLength = 2000
	// MaxIDLength caps client-supplied identifiers, in bytes.
	MaxIDLength = 128
)

// SanitizeName trims name and truncates it to MaxNameLength characters.
// A blank name yields the empty string; callers decide the fallback.
func SanitizeName(name string) string {
	return truncate(strings.TrimSpace(name), MaxNameLength)
}

// SanitizeText trims text and truncates it to MaxTextLength characters.
func SanitizeText(text string) string {
	return truncate(strings.TrimSpace(text), MaxTextLength)
}

func validateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("%s is required", field)
	}
	if len(id) > MaxIDLength {
		return invalidf("%s exceeds %d bytes", field, MaxIDLength)
	}
	if !utf8.ValidString(id) {
		return invalidf("%s must be valid UTF-8", field)
	}
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
