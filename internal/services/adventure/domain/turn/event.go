package turn

// EventType names a partial event observed during turn generation. The
// values double as wire tags on the bridge stream.
type EventType string

const (
	// EventTextChunk carries a fragment of narrative text.
	EventTextChunk EventType = "text_chunk"
	// EventReasoningChunk carries model reasoning that is shown live but
	// never committed to the narrative.
	EventReasoningChunk EventType = "reasoning_chunk"
	// EventToolCall reports that the generator invoked a state tool.
	EventToolCall EventType = "tool_call"
	// EventToolResult reports the outcome of a state tool invocation.
	EventToolResult EventType = "tool_result"
	// EventChoices carries the extracted choices for the pending turn.
	EventChoices EventType = "choices"
	// EventTurnComplete terminates a stream with the committed record.
	EventTurnComplete EventType = "turn_complete"
	// EventError terminates a stream with a failure.
	EventError EventType = "error"
)

// Event is one observational partial event. Events are never stored; only
// the final record of a successful submission reaches the history.
// A stream ends with exactly one EventTurnComplete or EventError.
type Event struct {
	Type EventType

	// Text is set for EventTextChunk and EventReasoningChunk.
	Text string
	// Tool and Arguments are set for EventToolCall; Tool and Result for
	// EventToolResult, where Result is the updated snapshot.
	Tool      string
	Arguments map[string]any
	Result    map[string]string
	// Choices is set for EventChoices.
	Choices []string
	// Turn is set for EventTurnComplete.
	Turn *Record
	// Err is set for EventError, and on EventToolResult when the
	// invocation was rejected. A rejected tool never ends the stream.
	Err error
}

// EmitFunc receives partial events during generation. A nil EmitFunc is
// valid and drops events.
type EmitFunc func(Event)

// Emit calls fn if it is non-nil.
func (fn EmitFunc) Emit(evt Event) {
	if fn != nil {
		fn(evt)
	}
}
