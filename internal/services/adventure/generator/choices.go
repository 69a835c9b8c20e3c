package generator

import (
	"strings"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

var defaultChoices = []string{
	"Continue exploring",
	"Examine your surroundings carefully",
	"Take a different approach",
}

var choicePrefixes = []string{"1.", "1)", "1:", "2.", "2)", "2:", "3.", "3)", "3:"}

// extractChoices pulls numbered choice lines ("1.", "2)", "3:") out of a
// model reply, in order of appearance. A reply with fewer than three
// numbered lines gets the default trio instead; anything past three is
// dropped.
func extractChoices(text string) []string {
	var choices []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range choicePrefixes {
			if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
				choices = append(choices, strings.TrimSpace(rest))
				break
			}
		}
	}
	if len(choices) < 3 {
		choices = turn.CopyChoices(defaultChoices)
	}
	return choices[:3]
}
