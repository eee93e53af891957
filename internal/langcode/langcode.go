// Package langcode converts between the canonical en/fr codes used on the
// wire and the ISO 639 variants, grounded on the original service's
// app/models/languages.py. Canonical codes remain the wire format per
// spec.md's invariants; this is a display/labeling helper only.
package langcode

import "strings"

// Format names an ISO 639 code family.
type Format int

const (
	ISO639_1 Format = iota
	ISO639_2B
	ISO639_2T
	ISO639_3
)

var mapping = map[string]map[Format]string{
	"en": {
		ISO639_1:  "en",
		ISO639_2B: "eng",
		ISO639_2T: "eng",
		ISO639_3:  "eng",
	},
	"fr": {
		ISO639_1:  "fr",
		ISO639_2B: "fre",
		ISO639_2T: "fra",
		ISO639_3:  "fra",
	},
}

var labels = map[string]string{
	"en": "English",
	"fr": "French",
}

// ToISOCode converts a canonical code to the requested ISO format. An
// unknown canonical code is returned unchanged.
func ToISOCode(canonical string, format Format) string {
	canonical = strings.ToLower(canonical)
	if formats, ok := mapping[canonical]; ok {
		return formats[format]
	}
	return canonical
}

// FromISOCode converts an ISO code back to its canonical form, returning
// ("", false) if no known language uses that code in the given format.
func FromISOCode(code string, format Format) (string, bool) {
	code = strings.ToLower(code)
	for lang, formats := range mapping {
		if formats[format] == code {
			return lang, true
		}
	}
	return "", false
}

// Label returns the human-readable name for a canonical code, title-casing
// unknown codes the way the original falls back to str.title().
func Label(canonical string) string {
	if label, ok := labels[strings.ToLower(canonical)]; ok {
		return label
	}
	if canonical == "" {
		return canonical
	}
	return strings.ToUpper(canonical[:1]) + strings.ToLower(canonical[1:])
}
