package generator

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// systemPrompt sets the dungeon master contract: narrative first, exactly
// three numbered choices, state changes through tools.
const systemPrompt = `You are a creative and immersive dungeon master for a text-based adventure game.

Your role is to:
1. Generate vivid, engaging narrative text that brings the story to life
2. Always provide exactly 3 distinct choices for the player at the end of your response
3. Use the available tools to naturally update game state (time, location, outfit) as the story progresses
4. Maintain consistency with the current game state and previous events
5. Be creative but responsive to player actions

Available tools:
- set_time: Update time of day (Morning, Afternoon, Evening, Night)
- set_location: Change the player's location
- set_outfit: Update the player's outfit or equipment

Format your responses as narrative text followed by three choices prefixed with numbers:
1. [First choice]
2. [Second choice]
3. [Third choice]

Use tools when appropriate (e.g., call set_time when time passes, set_location when moving to a new place).

Remember: You are telling an interactive story. Make it memorable!`

const (
	roleSystem    = "system"
	roleUser      = "user"
	roleAssistant = "assistant"
)

// promptMessage is a backend-neutral chat message. Roles match the wire
// values of both chat APIs.
type promptMessage struct {
	role    string
	content string
}

// userMessage frames a player action with the state it was taken in.
func userMessage(action string, snapshot map[string]string) string {
	return fmt.Sprintf(`Current State:
- Time: %s
- Location: %s
- Outfit: %s

Player Action: %s

Continue the story based on this action. Remember to provide exactly 3 choices and use tools to update state if appropriate.`,
		snapshot[turn.AttrTime], snapshot[turn.AttrLocation], snapshot[turn.AttrOutfit], action)
}

// buildConversation renders history into the chat transcript for one turn.
//
// The opening record carries no action and never reaches the model; every
// later record becomes a user/assistant pair, framed with the snapshot of
// the record before it. The system prompt and the new action are always
// kept; when the transcript exceeds the token budget the oldest pairs are
// dropped first.
func buildConversation(req Request, model string, budget int) []promptMessage {
	if budget <= 0 {
		budget = DefaultPromptBudget
	}
	count := newTokenCounter(model)

	system := promptMessage{role: roleSystem, content: systemPrompt}
	final := promptMessage{role: roleUser, content: userMessage(req.Action, req.Snapshot)}
	total := count(system.content) + count(final.content)

	var pairs []promptMessage
	var pairCost []int
	for i := 1; i < len(req.History); i++ {
		ask := promptMessage{role: roleUser, content: userMessage(req.History[i].Action, req.History[i-1].Snapshot)}
		reply := promptMessage{role: roleAssistant, content: req.History[i].Narrative}
		pairs = append(pairs, ask, reply)
		cost := count(ask.content) + count(reply.content)
		pairCost = append(pairCost, cost)
		total += cost
	}

	for len(pairCost) > 0 && total > budget {
		total -= pairCost[0]
		pairCost = pairCost[1:]
		pairs = pairs[2:]
	}

	messages := make([]promptMessage, 0, len(pairs)+2)
	messages = append(messages, system)
	messages = append(messages, pairs...)
	messages = append(messages, final)
	return messages
}

// newTokenCounter returns a token count function for model. Unknown models
// fall back to the cl100k_base encoding, and when no encoding can be
// loaded at all the counter estimates four bytes per token.
func newTokenCounter(model string) func(string) int {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		return func(text string) int { return len(text)/4 + 1 }
	}
	return func(text string) int { return len(enc.Encode(text, nil, nil)) }
}
