package vin

import "strings"

// Correct maps the OCR-ambiguous letters I, O and Q (any case) to '0' and
// strips everything outside the VIN alphabet. It is deliberately conservative:
// wider letter-to-digit substitutions (S->5, G->6, Z->2) live only in the
// Adjuster, which suggests rather than rewrites. Unconditional substitution
// corrupts barcode-sourced VINs that were already correct.
func Correct(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		if r > 'Z' || r < '0' {
			continue
		}
		c := byte(r)
		switch {
		case c == 'I' || c == 'O' || c == 'Q':
			b.WriteByte('0')
		case isVINChar(c):
			b.WriteByte(c)
		}
	}
	return b.String()
}
