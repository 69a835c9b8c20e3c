package generator

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// Ollama generates turns by streaming chat completions from an Ollama
// server, letting the model drive game state through tools.
//
// Tool calls are executed locally against a pending copy of the snapshot
// within the same round; results are not fed back to the model. A rejected
// tool call is reported to observers and skipped, it never fails the turn.
type Ollama struct {
	client *api.Client
	model  string
	budget int
}

// NewOllama builds the backend against cfg.Address, a host:port with an
// optional scheme.
func NewOllama(cfg Config) (*Ollama, error) {
	address := cfg.Address
	if address == "" {
		address = DefaultAddress
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	base, err := url.Parse(address)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(
			apperrors.CodeInvalidArgument,
			"invalid ollama address",
			map[string]string{"Address": cfg.Address},
			err,
		)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Ollama{
		client: api.NewClient(base, http.DefaultClient),
		model:  model,
		budget: cfg.PromptBudget,
	}, nil
}

// GenerateTurn implements Generator.
func (o *Ollama) GenerateTurn(ctx context.Context, req Request, emit turn.EmitFunc) (Result, error) {
	conversation := buildConversation(req, o.model, o.budget)
	messages := make([]api.Message, 0, len(conversation))
	for _, msg := range conversation {
		messages = append(messages, api.Message{Role: msg.role, Content: msg.content})
	}

	snapshot := turn.CopySnapshot(req.Snapshot)
	var narrative strings.Builder

	stream := true
	err := o.client.Chat(ctx, &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Tools:    gameTools,
	}, func(resp api.ChatResponse) error {
		if content := resp.Message.Content; content != "" {
			if isReasoningChunk(content) {
				emit.Emit(turn.Event{Type: turn.EventReasoningChunk, Text: content})
			} else {
				narrative.WriteString(content)
				emit.Emit(turn.Event{Type: turn.EventTextChunk, Text: content})
			}
		}
		for _, call := range resp.Message.ToolCalls {
			name := call.Function.Name
			args := map[string]any(call.Function.Arguments)
			emit.Emit(turn.Event{Type: turn.EventToolCall, Tool: name, Arguments: args})
			if err := applyTool(name, args, snapshot); err != nil {
				emit.Emit(turn.Event{Type: turn.EventToolResult, Tool: name, Err: err})
				continue
			}
			emit.Emit(turn.Event{Type: turn.EventToolResult, Tool: name, Result: turn.CopySnapshot(snapshot)})
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	text := narrative.String()
	choices := extractChoices(text)
	emit.Emit(turn.Event{Type: turn.EventChoices, Choices: choices})

	return Result{Narrative: text, Choices: choices, Snapshot: snapshot}, nil
}
