package resolver

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"Nocturne/track"

	"github.com/Strum355/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitSimpleLogger(&log.Config{Output: io.Discard})
	os.Exit(m.Run())
}

type scriptedBackend struct {
	calls   int
	results []func() (*Result, error)
}

func (b *scriptedBackend) Resolve(ctx context.Context, identifier string) (*Result, error) {
	step := b.calls
	b.calls++
	if step >= len(b.results) {
		step = len(b.results) - 1
	}
	return b.results[step]()
}

// unreachable builds a caching resolver whose store probe fails, so it
// runs in pass-through mode against the scripted backend.
func unreachable(backend Backend) *Caching {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewCaching(backend, &track.Codec{}, rdb, DefaultTTLs())
}

func TestCaching_PassThroughWhenStoreDown(t *testing.T) {
	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) {
			return &Result{Track: &track.Track{ID: "a", Title: "A"}}, nil
		},
	}}
	c := unreachable(backend)

	assert.False(t, c.Enabled())

	result, err := c.Resolve(context.Background(), "query")
	assert.NoError(t, err)
	assert.Equal(t, "a", result.Track.ID)
	assert.Equal(t, 1, backend.calls)

	total, hits := c.HitRate()
	assert.Equal(t, int64(0), total)
	assert.Equal(t, int64(0), hits)
}

func TestCaching_RetriesNoMatchesOnce(t *testing.T) {
	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) { return nil, ErrNoMatches },
		func() (*Result, error) {
			return &Result{Track: &track.Track{ID: "found"}}, nil
		},
	}}
	c := unreachable(backend)

	result, err := c.Resolve(context.Background(), "flaky")

	assert.NoError(t, err)
	assert.Equal(t, "found", result.Track.ID)
	assert.Equal(t, 2, backend.calls)
}

func TestCaching_NoMatchesTwiceIsEmptyResult(t *testing.T) {
	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) { return nil, ErrNoMatches },
	}}
	c := unreachable(backend)

	result, err := c.Resolve(context.Background(), "void")

	assert.NoError(t, err)
	assert.True(t, result.None())
	assert.Equal(t, 2, backend.calls)
}

func TestCaching_BackendErrorPropagates(t *testing.T) {
	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) { return nil, errors.New("provider down") },
	}}
	c := unreachable(backend)

	_, err := c.Resolve(context.Background(), "query")

	assert.Error(t, err)
	assert.Equal(t, 1, backend.calls)
}

func TestCaching_ResolveTrackNarrowsPlaylist(t *testing.T) {
	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) {
			return &Result{Playlist: &Playlist{
				Name:   "mix",
				Tracks: []*track.Track{{ID: "head"}, {ID: "tail"}},
			}}, nil
		},
	}}
	c := unreachable(backend)

	got, err := c.ResolveTrack(context.Background(), "mix-url")

	assert.NoError(t, err)
	assert.Equal(t, "head", got.ID)
}

func TestResult_None(t *testing.T) {
	assert.True(t, (*Result)(nil).None())
	assert.True(t, (&Result{}).None())
	assert.False(t, (&Result{Track: &track.Track{}}).None())
	assert.False(t, (&Result{Playlist: &Playlist{}}).None())
}

func TestPlaylistBlob_RoundTrip(t *testing.T) {
	codec := &track.Codec{}
	c := &Caching{codec: codec}
	original := &Playlist{
		Name:     "Mix",
		Search:   true,
		Selected: 1,
		Tracks: []*track.Track{
			{ID: "a", Title: "A", Duration: time.Minute},
			{ID: "b", Title: "B", Duration: 2 * time.Minute},
		},
	}

	encoded, err := c.encodePlaylist(original)
	assert.NoError(t, err)

	decoded, err := c.decode(encoded)
	assert.NoError(t, err)
	assert.Equal(t, original, decoded.Playlist)

	// A bare track encoding has no leading brace and decodes as a track.
	single, err := codec.Encode(&track.Track{ID: "solo"})
	assert.NoError(t, err)
	result, err := c.decode(single)
	assert.NoError(t, err)
	assert.Equal(t, "solo", result.Track.ID)
}
