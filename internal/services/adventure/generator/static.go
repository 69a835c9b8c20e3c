package generator

import (
	"context"
	"fmt"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

const staticNarrative = "You chose: '%s'. The path unfolds before you, revealing new mysteries and dangers. What will you do next?"

var staticChoices = []string{
	"Investigate the strange sound",
	"Continue forward cautiously",
	"Rest and assess your surroundings",
}

// Static generates turns without a model server. It echoes the action into
// a fixed narrative shape and leaves the snapshot unchanged, so the whole
// submission pipeline can run offline.
type Static struct{}

// NewStatic returns the offline backend.
func NewStatic() *Static {
	return &Static{}
}

// GenerateTurn implements Generator.
func (s *Static) GenerateTurn(ctx context.Context, req Request, emit turn.EmitFunc) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	narrative := fmt.Sprintf(staticNarrative, req.Action)
	choices := turn.CopyChoices(staticChoices)

	emit.Emit(turn.Event{Type: turn.EventTextChunk, Text: narrative})
	emit.Emit(turn.Event{Type: turn.EventChoices, Choices: choices})

	return Result{
		Narrative: narrative,
		Choices:   choices,
		Snapshot:  turn.CopySnapshot(req.Snapshot),
	}, nil
}
