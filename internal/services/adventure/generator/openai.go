package generator

import (
	"context"
	"errors"
	"io"
	"strings"

	openaigo "github.com/sashabaranov/go-openai"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// OpenAI generates turns by streaming chat completions from an
// OpenAI-compatible endpoint. Text only: no tools are offered, so the
// snapshot passes through unchanged and state advances only through the
// narrative itself.
type OpenAI struct {
	client *openaigo.Client
	model  string
	budget int
}

// NewOpenAI builds the backend. BaseURL may point at any server that
// speaks the chat completions protocol.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "openai provider needs an api key or a base url")
	}

	clientCfg := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{
		client: openaigo.NewClientWithConfig(clientCfg),
		model:  model,
		budget: cfg.PromptBudget,
	}, nil
}

// GenerateTurn implements Generator.
func (o *OpenAI) GenerateTurn(ctx context.Context, req Request, emit turn.EmitFunc) (Result, error) {
	conversation := buildConversation(req, o.model, o.budget)
	messages := make([]openaigo.ChatCompletionMessage, 0, len(conversation))
	for _, msg := range conversation {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: msg.role, Content: msg.content})
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, openaigo.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return Result{}, err
	}
	defer stream.Close()

	var narrative strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		content := resp.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		if isReasoningChunk(content) {
			emit.Emit(turn.Event{Type: turn.EventReasoningChunk, Text: content})
			continue
		}
		narrative.WriteString(content)
		emit.Emit(turn.Event{Type: turn.EventTextChunk, Text: content})
	}

	text := narrative.String()
	choices := extractChoices(text)
	emit.Emit(turn.Event{Type: turn.EventChoices, Choices: choices})

	return Result{Narrative: text, Choices: choices, Snapshot: turn.CopySnapshot(req.Snapshot)}, nil
}
