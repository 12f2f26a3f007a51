package text

import "strings"

// MaxMessageLength is the Telegram limit for a message text, in characters.
const MaxMessageLength = 4096

// Split cuts s into chunks of at most limit runes. It prefers to cut at a
// paragraph break, then at a line break, then at a space.
func Split(s string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}

	var chunks []string
	runes := []rune(s)
	for len(runes) > limit {
		cut := cutPoint(runes[:limit])
		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func cutPoint(window []rune) int {
	s := string(window)
	for _, sep := range []string{"\n\n", "\n", " "} {
		if i := strings.LastIndex(s, sep); i > 0 {
			return len([]rune(s[:i])) + len([]rune(sep))
		}
	}
	return len(window)
}
