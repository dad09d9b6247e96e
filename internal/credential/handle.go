package credential

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// GenerateHandle joins the lowercased first letter of first with the
// lowercased last name, dropping whitespace: ("John", "Doe") -> "jdoe".
func GenerateHandle(first, last string) (string, error) {
	first = strings.TrimSpace(first)
	if first == "" {
		return "", fmt.Errorf("%w: first name is empty", ErrInvalidInput)
	}
	initial, _ := utf8.DecodeRuneInString(first)

	var b strings.Builder
	b.WriteRune(unicode.ToLower(initial))
	for _, r := range last {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String(), nil
}
