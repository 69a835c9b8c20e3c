package generator

import "strings"

// isReasoningChunk reports whether a streamed content chunk is model
// reasoning rather than narrative. Reasoning models open their output with
// a <think> block or tag lines with "reasoning:"; those chunks are shown
// live but kept out of the committed narrative.
func isReasoningChunk(content string) bool {
	return strings.HasPrefix(content, "<think>") || strings.Contains(content, "reasoning:")
}
