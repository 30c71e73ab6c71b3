// Package resolve matches free-text field and institution names against a
// canonical catalog.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultQualifiers are dropped from names when normalising for search.
var DefaultQualifiers = []string{
	"honors track",
	"honours track",
	"standard track",
	"high quality program",
	"advanced program",
	"joint program",
	"chat luong cao",
	"chuong trinh tien tien",
	"chuong trinh lien ket",
	"clc",
}

func foldDiacritics(s string) string {
	// Transformers carry state, so each call gets its own chain.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			switch r {
			case 'đ':
				return 'd'
			case 'Đ':
				return 'D'
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// collapse lowercases and replaces every run of non-alphanumerics with one
// space.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		space = true
	}
	return b.String()
}

// Normalizer produces search and display forms of catalog names.
type Normalizer struct {
	qualifiers []string
}

// NewNormalizer builds a normalizer stripping the given qualifier phrases in
// search mode. A nil list selects DefaultQualifiers.
func NewNormalizer(qualifiers []string) Normalizer {
	if qualifiers == nil {
		qualifiers = DefaultQualifiers
	}
	n := Normalizer{}
	for _, q := range qualifiers {
		if q = collapse(foldDiacritics(q)); q != "" {
			n.qualifiers = append(n.qualifiers, q)
		}
	}
	return n
}

// Search returns the accent-free, lowercase, qualifier-free form used for
// matching.
func (n Normalizer) Search(s string) string {
	out := collapse(foldDiacritics(s))
	if len(n.qualifiers) == 0 || out == "" {
		return out
	}
	padded := " " + out + " "
	for _, q := range n.qualifiers {
		for strings.Contains(padded, " "+q+" ") {
			padded = strings.ReplaceAll(padded, " "+q+" ", " ")
		}
	}
	stripped := strings.TrimSpace(padded)
	if stripped == "" {
		// A name made only of qualifiers keeps its words.
		return out
	}
	return stripped
}

// Display returns the accent-free, lowercase form that keeps qualifiers.
func (n Normalizer) Display(s string) string {
	return collapse(foldDiacritics(s))
}

// Normalize is Search with DefaultQualifiers.
func Normalize(s string) string {
	return defaultNormalizer.Search(s)
}

var defaultNormalizer = NewNormalizer(nil)
