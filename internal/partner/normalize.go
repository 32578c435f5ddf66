// Package partner builds the partner directory from the government
// establishment registry, filtered by a CNAE seed set.
package partner

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonDigits    = regexp.MustCompile(`[^0-9]`)
	cnaeListSeps = regexp.MustCompile(`[;, ]+`)
)

// NormalizeCNAE strips non-digit characters and left-pads to the canonical
// 7-digit subclass form. Empty input stays empty.
func NormalizeCNAE(s string) string {
	digits := nonDigits.ReplaceAllString(strings.TrimSpace(s), "")
	if digits == "" {
		return ""
	}
	for len(digits) < 7 {
		digits = "0" + digits
	}
	return digits
}

// SplitSecondaryCNAEs splits the registry's secondary-CNAE field, which mixes
// semicolon, comma, and space separators.
func SplitSecondaryCNAEs(s string) []string {
	var codes []string
	for _, part := range cnaeListSeps.Split(s, -1) {
		if strings.TrimSpace(part) != "" {
			codes = append(codes, part)
		}
	}
	return codes
}

var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldAccents removes diacritics so registry text can be compared and stored
// in a single canonical form.
func FoldAccents(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeSegment produces the canonical segment label: accent-folded,
// upper-cased, trimmed.
func NormalizeSegment(s string) string {
	return strings.ToUpper(strings.TrimSpace(FoldAccents(s)))
}
