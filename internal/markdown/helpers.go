package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `_*[]()~` + "`" + `>#+-=|{}.!\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for i := 0; i < len(mdV2SpecialChars); i++ {
		m[mdV2SpecialChars[i]] = true
	}
	return m
}()

func EscapeV2(input string) string {
	return escape(input, func(c byte) bool { return mdV2Lookup[c] })
}

// EscapeLinkURL escapes the part inside (...) of an inline link, where only
// ')' and '\' are special.
func EscapeLinkURL(url string) string {
	return escape(url, func(c byte) bool { return c == ')' || c == '\\' })
}

func Link(title, url string) string {
	return "[" + EscapeV2(title) + "](" + EscapeLinkURL(url) + ")"
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

// Truncate shortens text to at most limit runes, ending with an ellipsis.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func escape(input string, special func(byte) bool) string {
	charsToEscape := 0

	for i := 0; i < len(input); i++ {
		if special(input[i]) {
			charsToEscape++
		}
	}

	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := 0; i < len(input); i++ {
		c := input[i]
		if special(c) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}
