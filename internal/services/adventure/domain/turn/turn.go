// Package turn defines the committed turn record and the partial events
// observed while one is being generated.
package turn

// Record is one committed turn of an adventure.
//
// Records are value types: constructors and accessors copy the choices slice
// and snapshot map so no two records share mutable state.
type Record struct {
	// Sequence is the append position of this record within its session
	// history. The opening turn is sequence 0. Assigned by the history
	// store, never by callers.
	Sequence int
	// Action is the player action that produced this record. Empty for
	// the opening turn. Generators replay it to rebuild the model
	// conversation from history alone.
	Action string
	// Narrative is the story text committed for this turn.
	Narrative string
	// Choices are suggested next actions, in presentation order. Only the
	// latest turn's choices are actionable.
	Choices []string
	// Snapshot holds the named game attributes as of this turn, such as
	// time, location, and outfit.
	Snapshot map[string]string
}

// Well-known snapshot attribute keys. The snapshot map is open; unknown keys
// pass through unchanged.
const (
	AttrTime     = "time"
	AttrLocation = "location"
	AttrOutfit   = "outfit"
)

// NewRecord builds an unsequenced record, copying choices and snapshot.
func NewRecord(action, narrative string, choices []string, snapshot map[string]string) Record {
	return Record{
		Action:    action,
		Narrative: narrative,
		Choices:   CopyChoices(choices),
		Snapshot:  CopySnapshot(snapshot),
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	out.Choices = CopyChoices(r.Choices)
	out.Snapshot = CopySnapshot(r.Snapshot)
	return out
}

// CopySnapshot returns a copy of a snapshot map. Nil input yields an empty
// non-nil map so callers can mutate the copy safely.
func CopySnapshot(snapshot map[string]string) map[string]string {
	out := make(map[string]string, len(snapshot))
	for key, value := range snapshot {
		out[key] = value
	}
	return out
}

// CopyChoices returns a copy of a choices slice. Nil stays nil.
func CopyChoices(choices []string) []string {
	if choices == nil {
		return nil
	}
	out := make([]string, len(choices))
	copy(out, choices)
	return out
}
