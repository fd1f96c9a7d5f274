package extract

import (
	"strings"
	"unicode/utf8"
)

// validUTF8 returns s with invalid UTF-8 sequences replaced by the
// replacement character.
func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}
