package queue

import (
	"errors"
	"time"
)

// Queue is the ordered sequence of encoded tracks pending for one guild.
// A single session owns a queue at a time; implementations only need to be
// consistent under that single-writer discipline. All indices are 0-based;
// callers presenting user-facing positions shift by one themselves.
type Queue interface {
	// Offer appends an encoded track to the tail.
	Offer(encoded string) error
	// InsertAt places an encoded track at the given index, shifting the
	// rest down. Index 0 is "play next".
	InsertAt(index int, encoded string) error
	// PollHead removes and returns the head, or ok=false when empty.
	PollHead() (encoded string, ok bool, err error)
	// RemoveAt removes the entry at index, returning it.
	RemoveAt(index int) (string, error)
	// RemoveRange removes entries in [start, end] inclusive, returning the
	// number removed.
	RemoveRange(start, end int) (int, error)
	// RemoveWhere removes every entry the predicate matches, returning the
	// number removed.
	RemoveWhere(pred func(encoded string) bool) (int, error)
	// Move relocates the entry at from to position to.
	Move(from, to int) error
	// Shuffle randomizes the order of the pending entries.
	Shuffle() error
	// Size returns the number of pending entries.
	Size() (int, error)
	// Snapshot returns the pending entries in consumption order.
	Snapshot() ([]string, error)
	// Clear discards all pending entries.
	Clear() error
	// SetExpiry arms an idle expiry after which the store may discard the
	// queue. Offering again clears it.
	SetExpiry(d time.Duration) error
}

// ErrBadIndex is returned for out-of-range index or range arguments.
var ErrBadIndex = errors.New("queue: index out of range")
