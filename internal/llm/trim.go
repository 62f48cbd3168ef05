package llm

import (
	"strings"

	"github.com/scrypster/keepsake/internal/tokens"
)

// historyMarker introduces the trimmable history sub-section inside the
// composed user message.
const historyMarker = "对话历史:"

// trimBuffer is the token margin left free after trimming.
const trimBuffer = 16

// TrimToBudget enforces maxInputTokens on an assembled system+user message
// pair. The system message is never modified. When the pair overestimates
// the budget, lines of the user message's history sub-section are dropped
// from the oldest end until the remainder fits with a 16-token buffer.
//
// This is best effort: if the user message has no history section, or the
// non-history remainder alone exceeds the budget, the input is returned
// unchanged and the second result is false.
func TrimToBudget(systemMsg, userMsg string, maxInputTokens int) (string, bool) {
	if maxInputTokens <= 0 {
		return userMsg, false
	}

	systemCost := tokens.Estimate(systemMsg)
	if systemCost+tokens.Estimate(userMsg) <= maxInputTokens {
		return userMsg, false
	}

	markerIdx := strings.Index(userMsg, historyMarker)
	if markerIdx < 0 {
		return userMsg, false
	}

	// The history section runs from the marker line to the next blank line
	// (or end of message).
	sectionStart := markerIdx + len(historyMarker)
	sectionEnd := len(userMsg)
	if rel := strings.Index(userMsg[sectionStart:], "\n\n"); rel >= 0 {
		sectionEnd = sectionStart + rel
	}

	head := userMsg[:sectionStart]
	history := userMsg[sectionStart:sectionEnd]
	tail := userMsg[sectionEnd:]

	budget := maxInputTokens - trimBuffer - systemCost -
		tokens.Estimate(head) - tokens.Estimate(tail)
	if budget < 0 {
		return userMsg, false
	}

	lines := strings.Split(strings.Trim(history, "\n"), "\n")
	// Drop from the oldest end until the remaining history fits.
	for start := 0; start <= len(lines); start++ {
		kept := lines[start:]
		cost := 0
		for _, line := range kept {
			cost += tokens.Estimate(line)
		}
		if cost <= budget {
			if start == 0 {
				return userMsg, false
			}
			rebuilt := head + "\n" + strings.Join(kept, "\n") + tail
			return rebuilt, true
		}
	}

	return userMsg, false
}
