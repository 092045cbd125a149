package queue

import (
	"math/rand"
	"sync"
	"time"
)

// Memory is an in-process queue with the same contract as Redis. It backs
// tests and acts as the reference implementation for the index semantics.
type Memory struct {
	mu    sync.Mutex
	items []string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (q *Memory) Offer(encoded string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, encoded)
	return nil
}

func (q *Memory) InsertAt(index int, encoded string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index > len(q.items) {
		return ErrBadIndex
	}
	q.items = append(q.items, "")
	copy(q.items[index+1:], q.items[index:])
	q.items[index] = encoded
	return nil
}

func (q *Memory) PollHead() (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false, nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head, true, nil
}

func (q *Memory) RemoveAt(index int) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return "", ErrBadIndex
	}
	removed := q.items[index]
	q.items = append(q.items[:index], q.items[index+1:]...)
	return removed, nil
}

func (q *Memory) RemoveRange(start, end int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if start < 0 || end < start || start >= len(q.items) {
		return 0, ErrBadIndex
	}
	if end >= len(q.items) {
		end = len(q.items) - 1
	}
	removed := end - start + 1
	q.items = append(q.items[:start], q.items[end+1:]...)
	return removed, nil
}

func (q *Memory) RemoveWhere(pred func(string) bool) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	kept := q.items[:0]
	for _, item := range q.items {
		if pred(item) {
			removed++
		} else {
			kept = append(kept, item)
		}
	}
	q.items = kept
	return removed, nil
}

func (q *Memory) Move(from, to int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if from < 0 || from >= len(q.items) || to < 0 || to >= len(q.items) {
		return ErrBadIndex
	}
	item := q.items[from]
	q.items = append(q.items[:from], q.items[from+1:]...)
	q.items = append(q.items[:to], append([]string{item}, q.items[to:]...)...)
	return nil
}

func (q *Memory) Shuffle() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
	return nil
}

func (q *Memory) Size() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

func (q *Memory) Snapshot() ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	snapshot := make([]string, len(q.items))
	copy(snapshot, q.items)
	return snapshot, nil
}

func (q *Memory) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	return nil
}

// SetExpiry is a no-op; an in-process queue dies with the process anyway.
func (q *Memory) SetExpiry(time.Duration) error {
	return nil
}
