package resolver

import (
	"context"
	"os"
	"testing"

	"Nocturne/track"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// storeClient connects to the redis named by REDIS_ADDR, skipping the
// test when no store is available.
func storeClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestCaching_StoreRoundTrip(t *testing.T) {
	rdb := storeClient(t)
	key := "resolve-test-roundtrip"
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	backend := &scriptedBackend{results: []func() (*Result, error){
		func() (*Result, error) {
			return &Result{Track: &track.Track{ID: "first", Title: "First"}}, nil
		},
	}}
	c := NewCaching(backend, &track.Codec{}, rdb, DefaultTTLs())
	assert.True(t, c.Enabled())

	result, err := c.Resolve(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, "first", result.Track.ID)
	assert.Equal(t, 1, backend.calls)

	// The second resolution is served from the store.
	result, err = c.Resolve(context.Background(), key)
	assert.NoError(t, err)
	assert.Equal(t, "first", result.Track.ID)
	assert.Equal(t, 1, backend.calls)

	total, hits := c.HitRate()
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), hits)
}

func TestCaching_StoreWriteIsSetIfAbsent(t *testing.T) {
	rdb := storeClient(t)
	key := "resolve-test-setnx"
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	c := NewCaching(&scriptedBackend{}, &track.Codec{}, rdb, DefaultTTLs())
	assert.True(t, c.Enabled())

	c.store(key, &Result{Track: &track.Track{ID: "winner"}})
	// The loser of a concurrent resolution race writes after the winner
	// and must change nothing.
	c.store(key, &Result{Track: &track.Track{ID: "loser"}})

	cached, ok := c.lookup(key)
	assert.True(t, ok)
	assert.Equal(t, "winner", cached.Track.ID)
}
