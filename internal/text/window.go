package text

// EstimateTokens gives a rough token count for s. Cyrillic text averages
// about three characters per token for the models the bot talks to.
func EstimateTokens(s string) int {
	return len([]rune(s))/3 + 5
}

// FitWindow returns the start index of the longest suffix of texts whose
// estimated size stays within budget tokens. The suffix keeps the most
// recent items when texts are ordered oldest first.
func FitWindow(texts []string, budget int) int {
	used := 0
	for i := len(texts) - 1; i >= 0; i-- {
		used += EstimateTokens(texts[i])
		if used > budget {
			return i + 1
		}
	}
	return 0
}
