// Package tokens provides the heuristic token estimator every budgeting
// decision in the system is built on. It deliberately avoids a real
// tokenizer: the estimate only has to be deterministic and monotonic in
// string length for same-script text.
package tokens

// Characters-per-token divisors for the two script regimes, and the fixed
// per-message overhead approximating chat formatting.
const (
	cjkCharsPerToken   = 1.5
	latinCharsPerToken = 4
	messageOverhead    = 4

	// cjkRatioThreshold is the CJK character fraction above which text is
	// treated as CJK-dominant.
	cjkRatioThreshold = 0.3
)

// Estimate returns the estimated token count for text. CJK-dominant text
// (more than 30% ideographs) estimates at ~1.5 chars/token, everything else
// at ~4 chars/token. Non-empty input always estimates to at least 1; empty
// input is 0.
func Estimate(text string) int {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	cjk := 0
	for _, r := range runes {
		if isCJK(r) {
			cjk++
		}
	}

	total := len(runes)
	var est int
	if float64(cjk)/float64(total) > cjkRatioThreshold {
		est = int(float64(total) / cjkCharsPerToken)
	} else {
		est = total / latinCharsPerToken
	}
	if est < 1 {
		est = 1
	}
	return est
}

// EstimateMessages estimates the token count for joined message content plus
// a fixed 4-token overhead per message.
func EstimateMessages(text string, messageCount int) int {
	if text == "" {
		return messageCount * messageOverhead
	}
	return Estimate(text) + messageCount*messageOverhead
}

// isCJK reports whether r falls in the CJK Unified Ideographs block.
func isCJK(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}
