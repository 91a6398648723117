package llm

// Published per-million-token rates used for the cost metadata persisted with
// enrichment rows. These are estimates for bookkeeping, not billing.
const (
	generationInputPerMTokUSD  = 0.30
	generationOutputPerMTokUSD = 2.50
	embeddingInputPerMTokUSD   = 0.15

	// Rough chars-per-token ratio for English text
	charsPerToken = 4
)

// EstimateTokens approximates the token count of a text for APIs that do not
// report usage.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := len(text) / charsPerToken
	if tokens == 0 {
		tokens = 1
	}
	return tokens
}

func generationCostUSD(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*generationInputPerMTokUSD/1e6 +
		float64(outputTokens)*generationOutputPerMTokUSD/1e6
}

func embeddingCostUSD(inputTokens int) float64 {
	return float64(inputTokens) * embeddingInputPerMTokUSD / 1e6
}
