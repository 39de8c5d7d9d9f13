package textract

import (
	"regexp"
	"strings"
)

var (
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
	reManyBlank     = regexp.MustCompile(`\n{3,}`)
	reBoxNoise      = regexp.MustCompile(`[│┃┆┊╎║|_]{3,}`)
)

var spaceReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\x00", "",
	"\u00a0", " ",
	"\u202f", " ",
	"\ufeff", "",
)

// Normalize cleans backend output while keeping line structure and the form
// feed page separators intact.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = spaceReplacer.Replace(s)
	s = reBoxNoise.ReplaceAllString(s, "")
	s = reTrailingSpace.ReplaceAllString(s, "\n")
	s = reManyBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// FirstPage returns the text up to the first form feed.
func FirstPage(s string) string {
	if i := strings.IndexByte(s, '\f'); i >= 0 {
		return s[:i]
	}
	return s
}
