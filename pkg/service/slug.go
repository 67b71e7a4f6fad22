package service

import (
	"regexp"
	"strings"
	"unicode"
)

const maxAliasLength = 50

var reservedAliases = map[string]bool{
	"api":     true,
	"admin":   true,
	"v1":      true,
	"health":  true,
	"metrics": true,
}

var validSlug = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// NormalizeSlug turns a user supplied alias into a URL-safe slug.
//
// Input that is already made of ASCII letters, digits and hyphens is returned
// trimmed but otherwise untouched, case included. Anything else has every other
// non-space character removed, is lowercased, and has each whitespace run
// replaced by a single hyphen.
func NormalizeSlug(alias string) string {
	trimmed := strings.TrimSpace(alias)
	if validSlug.MatchString(trimmed) {
		return trimmed
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	inSpace := false
	for _, r := range trimmed {
		switch {
		case unicode.IsSpace(r):
			if !inSpace {
				b.WriteByte('-')
			}
			inSpace = true
			continue
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			// Stripped characters do not end a whitespace run.
			continue
		}
		inSpace = false
	}
	return b.String()
}

// ValidateAlias rejects slugs that cannot be used as a short code.
func ValidateAlias(slug string) error {
	if slug == "" || len(slug) > maxAliasLength {
		return ErrInvalidAlias
	}
	if reservedAliases[strings.ToLower(slug)] {
		return ErrInvalidAlias
	}
	if !validSlug.MatchString(slug) {
		return ErrInvalidAlias
	}
	return nil
}
