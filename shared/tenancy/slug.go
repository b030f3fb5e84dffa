package tenancy

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify turns a display name into a URL-safe slug ("Taller Central" →
// "taller-central"). Accents are folded to their base letters.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(name)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// SlugTaken reports whether a slug is already in use
type SlugTaken func(slug string) (bool, error)

// UniqueSlug derives a slug from name and appends -2, -3, ... until taken
// reports it free
func UniqueSlug(name string, taken SlugTaken) (string, error) {
	base := Slugify(name)
	if base == "" {
		base = "tenant"
	}
	candidate := base
	for i := 2; ; i++ {
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
