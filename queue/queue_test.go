package queue

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filled(items ...string) *Memory {
	q := NewMemory()
	for _, item := range items {
		q.Offer(item)
	}
	return q
}

func TestMemory_OfferPollOrder(t *testing.T) {
	q := filled("a", "b", "c")

	head, ok, err := q.PollHead()
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", head)

	head, ok, _ = q.PollHead()
	assert.True(t, ok)
	assert.Equal(t, "b", head)
}

func TestMemory_PollEmpty(t *testing.T) {
	q := NewMemory()

	head, ok, err := q.PollHead()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "", head)
}

func TestMemory_InsertAtHead(t *testing.T) {
	q := filled("a", "b")

	assert.NoError(t, q.InsertAt(0, "next"))

	snapshot, _ := q.Snapshot()
	assert.Equal(t, []string{"next", "a", "b"}, snapshot)
}

func TestMemory_InsertAtBadIndex(t *testing.T) {
	q := filled("a")

	assert.ErrorIs(t, q.InsertAt(5, "x"), ErrBadIndex)
	assert.ErrorIs(t, q.InsertAt(-1, "x"), ErrBadIndex)
}

func TestMemory_RemoveAt(t *testing.T) {
	q := filled("a", "b", "c")

	removed, err := q.RemoveAt(1)
	assert.NoError(t, err)
	assert.Equal(t, "b", removed)

	snapshot, _ := q.Snapshot()
	assert.Equal(t, []string{"a", "c"}, snapshot)

	_, err = q.RemoveAt(9)
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestMemory_RemoveRange(t *testing.T) {
	q := filled("a", "b", "c", "d", "e")

	removed, err := q.RemoveRange(1, 3)
	assert.NoError(t, err)
	assert.Equal(t, 3, removed)

	snapshot, _ := q.Snapshot()
	assert.Equal(t, []string{"a", "e"}, snapshot)
}

func TestMemory_RemoveRangeClampsEnd(t *testing.T) {
	q := filled("a", "b", "c")

	removed, err := q.RemoveRange(1, 99)
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	size, _ := q.Size()
	assert.Equal(t, 1, size)
}

func TestMemory_RemoveWhere(t *testing.T) {
	q := filled("keep-1", "drop-1", "keep-2", "drop-2")

	removed, err := q.RemoveWhere(func(item string) bool {
		return strings.HasPrefix(item, "drop")
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	snapshot, _ := q.Snapshot()
	assert.Equal(t, []string{"keep-1", "keep-2"}, snapshot)
}

func TestMemory_Move(t *testing.T) {
	q := filled("a", "b", "c", "d")

	assert.NoError(t, q.Move(3, 0))

	snapshot, _ := q.Snapshot()
	assert.Equal(t, []string{"d", "a", "b", "c"}, snapshot)

	assert.ErrorIs(t, q.Move(0, 9), ErrBadIndex)
}

func TestMemory_ShufflePreservesContents(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}
	q := filled(items...)

	assert.NoError(t, q.Shuffle())

	snapshot, _ := q.Snapshot()
	sort.Strings(snapshot)
	assert.Equal(t, items, snapshot)
}

func TestMemory_Clear(t *testing.T) {
	q := filled("a", "b")

	assert.NoError(t, q.Clear())

	size, _ := q.Size()
	assert.Equal(t, 0, size)
}

func TestMemory_SnapshotIsCopy(t *testing.T) {
	q := filled("a", "b")

	snapshot, _ := q.Snapshot()
	snapshot[0] = "mutated"

	fresh, _ := q.Snapshot()
	assert.Equal(t, "a", fresh[0])
}
