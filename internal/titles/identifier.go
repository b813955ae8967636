package titles

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var specialCharsRe = regexp.MustCompile(`[^\p{L}\p{N}\s_:!]`)

// reservedRemap keeps titles that differ only by these characters apart,
// e.g. "Nisekoi" and "Nisekoi:".
var reservedRemap = []struct {
	char, repl string
}{
	{":", "__"},
	{"!", "___"},
}

// RemoveSpecialCharacters strips punctuation and remaps reserved characters
// to underscore runs.
func RemoveSpecialCharacters(s string) string {
	s = norm.NFKC.String(s)
	s = specialCharsRe.ReplaceAllString(s, "")
	for _, r := range reservedRemap {
		s = strings.ReplaceAll(s, r.char, r.repl)
	}
	return s
}

// Identifier turns an anime title into a key usable as a file name and a
// table name.
func Identifier(title string) string {
	key := strings.ToLower(strings.ReplaceAll(RemoveSpecialCharacters(title), " ", "_"))
	if key != "" && unicode.IsDigit([]rune(key)[0]) {
		key = "_" + key
	}
	return key
}
