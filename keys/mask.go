package keys

import "strings"

// DefaultMaskShow is the number of leading characters a mask preserves
const DefaultMaskShow = 4

// MaskValue produces a fixed-width redaction of a credential for logging.
// The masked string always has the same character count as the input, so log
// line alignment survives and no length information leaks beyond what the
// visible prefix already reveals. Empty input returns the literal "****".
// Lengths are measured in runes so a multibyte input never yields a broken
// prefix.
func MaskValue(key string, show int) string {
	if key == "" {
		return "****"
	}
	if show <= 0 {
		show = DefaultMaskShow
	}
	runes := []rune(key)
	if len(runes) <= show {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:show]) + strings.Repeat("*", len(runes)-show)
}
