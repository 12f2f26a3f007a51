// Package text cleans model output and fits it into Telegram messages.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	controlCharsRegex     = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	multipleNewlinesRegex = regexp.MustCompile(`\n{3,}`)

	// unicodeReplacer drops invisible characters and maps exotic spaces and
	// separators to plain ones.
	unicodeReplacer = strings.NewReplacer(
		"\u2060", "",
		"\uFEFF", "",
		"\u00AD", "",
		"\u200E", "",
		"\u200F", "",
		"\u2061", "",
		"\u2062", "",
		"\u2063", "",
		"\u2064", "",
		"\u2028", "\n",
		"\u2029", "\n\n",
		"\u200B", " ",
		"\u200C", " ",
		"\u205F", " ",
		"\u2009", " ",
		"\u3000", " ",
		"\u00A0", " ",
	)
)

// normalizeLineWhitespace collapses runs of whitespace inside a line into a
// single space. Leading spaces are kept so list indentation survives.
func normalizeLineWhitespace(line string) string {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	indent := len(line) - len(trimmed)

	var sb strings.Builder
	if indent > 0 {
		sb.WriteString(strings.Repeat(" ", min(indent, 8)))
	}

	space := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !space {
				sb.WriteRune(' ')
				space = true
			}
			continue
		}
		sb.WriteRune(r)
		space = false
	}
	return strings.TrimRightFunc(sb.String(), unicode.IsSpace)
}

// Sanitize normalizes line endings, removes control and invisible
// characters, collapses whitespace and limits blank lines to one. The result
// may be empty.
func Sanitize(input string) string {
	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = unicodeReplacer.Replace(s)
	s = controlCharsRegex.ReplaceAllString(s, " ")

	parts := strings.Split(s, "\n")
	for i := range parts {
		parts[i] = normalizeLineWhitespace(parts[i])
	}

	s = strings.Join(parts, "\n")
	s = multipleNewlinesRegex.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}
