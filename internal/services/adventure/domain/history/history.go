// Package history maintains the ordered log of committed turns for one
// session and the cursor over the turn currently in view.
package history

import (
	"strconv"
	"sync"

	apperrors "github.com/louisbranch/threshold.quest/internal/platform/errors"
	"github.com/louisbranch/threshold.quest/internal/services/adventure/domain/turn"
)

// Store is an append-only turn log with a navigation cursor.
//
// Sequence numbers equal insertion indices: the record appended to an empty
// store is sequence 0. Closing a store blocks appends; reads keep working so
// a finished adventure can still be browsed.
type Store struct {
	mu      sync.Mutex
	records []turn.Record
	cursor  int
	closed  bool
}

// NewStore returns an empty open store.
func NewStore() *Store {
	return &Store{cursor: -1}
}

// Append assigns the next sequence number to record, appends it, and moves
// the cursor to it. Returns the assigned index. Fails only when the store
// has been closed.
func (s *Store) Append(record turn.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, apperrors.New(apperrors.CodeSessionClosed, "history is closed to appends")
	}

	record = record.Clone()
	record.Sequence = len(s.records)
	s.records = append(s.records, record)
	s.cursor = record.Sequence
	return record.Sequence, nil
}

// Navigate moves the cursor to index and returns that record. An
// out-of-range index leaves the cursor untouched and reports
// TURN_OUT_OF_RANGE; callers are expected to ignore or log it.
func (s *Store) Navigate(index int) (turn.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.records) {
		return turn.Record{}, apperrors.WithMetadata(
			apperrors.CodeTurnOutOfRange,
			"turn index is out of range",
			map[string]string{"Index": strconv.Itoa(index)},
		)
	}
	s.cursor = index
	return s.records[index].Clone(), nil
}

// Current returns the record under the cursor. The second return is false
// when the store is empty.
func (s *Store) Current() (turn.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return turn.Record{}, false
	}
	return s.records[s.cursor].Clone(), true
}

// IsLatest reports whether the cursor sits on the newest record. An empty
// store is not at latest.
func (s *Store) IsLatest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records) > 0 && s.cursor == len(s.records)-1
}

// Len returns the number of committed records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Cursor returns the cursor position. The second return is false when the
// store is empty.
func (s *Store) Cursor() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return 0, false
	}
	return s.cursor, true
}

// List returns a copy of every committed record in sequence order.
func (s *Store) List() []turn.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]turn.Record, len(s.records))
	for i, record := range s.records {
		out[i] = record.Clone()
	}
	return out
}

// Close blocks further appends. Idempotent. Reads and navigation continue
// to work on a closed store.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether the store accepts appends.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
