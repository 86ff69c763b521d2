package cache

import (
	"strings"
	"unicode"
)

// toSnake lowercases s and joins its words with underscores. Anything that
// is not a letter or digit separates words, so pointer stars, package dots
// and dashes never reach a key.
func toSnake(s string) string {
	var words []string
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, field := range fields {
		words = append(words, splitWords(field)...)
	}
	return strings.ToLower(strings.Join(words, "_"))
}

// splitWords breaks a camel case identifier at case and digit boundaries,
// keeping acronyms together: HTTPServer gives HTTP and Server.
func splitWords(s string) []string {
	runes := []rune(s)
	var words []string

	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]

		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur) ||
			unicode.IsDigit(prev) != unicode.IsDigit(cur) ||
			unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1])

		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	return append(words, string(runes[start:]))
}
