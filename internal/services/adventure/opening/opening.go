// Package opening supplies the first record of a new adventure.
package opening

import (
	"context"

	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// Provider supplies the opening record for a new session.
type Provider interface {
	OpeningTurn(ctx context.Context) (turn.Record, error)
}

const openingNarrative = "You wake up in a dimly lit room. The air smells of old parchment and something... magical. Three doors stand before you, each humming with a different energy."

var openingChoices = []string{
	"Open the door radiating blue light",
	"Open the door with ancient runes carved into it",
	"Open the plain wooden door",
}

// Scene is the fixed opening every adventure starts from: a mysterious
// room, three doors, morning light.
type Scene struct{}

// OpeningTurn implements Provider.
func (Scene) OpeningTurn(ctx context.Context) (turn.Record, error) {
	if err := ctx.Err(); err != nil {
		return turn.Record{}, err
	}
	return turn.NewRecord("", openingNarrative, openingChoices, map[string]string{
		turn.AttrTime:     "Morning",
		turn.AttrLocation: "Mysterious Room",
		turn.AttrOutfit:   "Traveler's Cloak",
	}), nil
}
