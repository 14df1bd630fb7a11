package helpers

import "strings"

// Converts an arbitrary request string into an ASCII identifier fragment.
// A leading character that can't start an identifier gets an "_" prefix and
// every run of characters outside [a-zA-Z0-9$] becomes a single "_":
//
//   "./a.js"       => "_a_js"
//   "lodash/merge" => "lodash_merge"
//   "@scope/pkg"   => "_scope_pkg"
//
func ToIdentifier(text string) string {
	sb := strings.Builder{}
	sb.Grow(len(text) + 1)

	needsGap := len(text) > 0 && !isIdentifierStartASCII(text[0])
	for i := 0; i < len(text); i++ {
		c := text[i]
		if isIdentifierContinueASCII(c) {
			if needsGap {
				sb.WriteByte('_')
				needsGap = false
			}
			sb.WriteByte(c)
		} else {
			needsGap = true
		}
	}
	if needsGap {
		sb.WriteByte('_')
	}

	// Make sure the name isn't empty
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func isIdentifierStartASCII(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '$' || c == '_'
}

func isIdentifierContinueASCII(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '$'
}
