package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"Nocturne/track"

	"github.com/Strum355/log"
	"github.com/redis/go-redis/v9"
)

// TTLs holds the cache lifetime per result kind.
type TTLs struct {
	Track    time.Duration
	Search   time.Duration
	Playlist time.Duration
}

// DefaultTTLs mirrors the usual deployment configuration.
func DefaultTTLs() TTLs {
	return TTLs{
		Track:    12 * time.Hour,
		Search:   12 * time.Hour,
		Playlist: 2 * time.Hour,
	}
}

// Caching wraps a Backend with a redis read-through cache keyed by the raw
// query identifier. Writes are set-if-absent, so concurrent resolutions of
// the same query are idempotent: losers of the race change nothing.
type Caching struct {
	backend Backend
	codec   *track.Codec
	rdb     *redis.Client
	ttls    TTLs
	enabled bool

	// Hit counters, read by session stats.
	totalHits      atomic.Int64
	successfulHits atomic.Int64
}

// NewCaching probes the cache store once; if it is unreachable the
// resolver degrades to pass-through rather than failing resolution.
func NewCaching(backend Backend, codec *track.Codec, rdb *redis.Client, ttls TTLs) *Caching {
	c := &Caching{
		backend: backend,
		codec:   codec,
		rdb:     rdb,
		ttls:    ttls,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Error("Caching is disabled for this session (unable to reach redis)")
	} else {
		log.Info("Track and playlist caching is available")
		c.enabled = true
	}

	return c
}

// Resolve consults the cache, then the backend. A backend "no matches" is
// retried exactly once before giving up; anything found on a miss is
// written back with a TTL chosen by result kind.
func (c *Caching) Resolve(ctx context.Context, identifier string) (*Result, error) {
	if cached, ok := c.lookup(identifier); ok {
		return cached, nil
	}

	result, err := c.backend.Resolve(ctx, identifier)
	if errors.Is(err, ErrNoMatches) || (err == nil && result.None()) {
		// One retry covers transient provider hiccups on searches.
		result, err = c.backend.Resolve(ctx, identifier)
		if errors.Is(err, ErrNoMatches) {
			return &Result{}, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	c.store(identifier, result)
	return result, nil
}

// ResolveTrack narrows Resolve to a single track, taking the head of any
// playlist result. Used by the radio sources.
func (c *Caching) ResolveTrack(ctx context.Context, identifier string) (*track.Track, error) {
	result, err := c.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if result.Track != nil {
		return result.Track, nil
	}
	if result.Playlist != nil && len(result.Playlist.Tracks) > 0 {
		return result.Playlist.Tracks[0], nil
	}
	return nil, nil
}

// Enabled reports whether the cache store was reachable at startup.
func (c *Caching) Enabled() bool { return c.enabled }

// HitRate returns total lookups and how many were served from cache.
func (c *Caching) HitRate() (total, hits int64) {
	return c.totalHits.Load(), c.successfulHits.Load()
}

func (c *Caching) lookup(identifier string) (*Result, bool) {
	if !c.enabled {
		return nil, false
	}

	c.totalHits.Add(1)
	encoded, err := c.rdb.Get(context.Background(), identifier).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Error("Cache lookup failed")
		}
		return nil, false
	}

	result, err := c.decode(encoded)
	if err != nil {
		log.WithError(err).Error("Discarding undecodable cache entry")
		return nil, false
	}

	c.successfulHits.Add(1)
	return result, true
}

func (c *Caching) store(identifier string, result *Result) {
	if !c.enabled || result.None() {
		return
	}

	var encoded string
	var ttl time.Duration
	var err error

	switch {
	case result.Track != nil:
		encoded, err = c.codec.Encode(result.Track)
		ttl = c.ttls.Track
	case result.Playlist.Search:
		encoded, err = c.encodePlaylist(result.Playlist)
		ttl = c.ttls.Search
	default:
		encoded, err = c.encodePlaylist(result.Playlist)
		ttl = c.ttls.Playlist
	}
	if err != nil {
		log.WithError(err).Error("Unable to encode resolution result for caching")
		return
	}

	if err := c.rdb.SetNX(context.Background(), identifier, encoded, ttl).Err(); err != nil {
		log.WithError(err).Error("Cache write failed")
	}
}

// Playlists are cached as JSON, single tracks as the bare base64 track
// encoding; the leading '{' disambiguates on read.
type playlistBlob struct {
	Name     string   `json:"name"`
	Tracks   []string `json:"tracks"`
	Search   bool     `json:"search"`
	Selected int      `json:"selected"`
}

func (c *Caching) encodePlaylist(p *Playlist) (string, error) {
	blob := playlistBlob{
		Name:     p.Name,
		Search:   p.Search,
		Selected: p.Selected,
		Tracks:   make([]string, 0, len(p.Tracks)),
	}
	for _, t := range p.Tracks {
		encoded, err := c.codec.Encode(t)
		if err != nil {
			return "", err
		}
		blob.Tracks = append(blob.Tracks, encoded)
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Caching) decode(encoded string) (*Result, error) {
	if !strings.HasPrefix(encoded, "{") {
		t, err := c.codec.Decode(encoded)
		if err != nil {
			return nil, err
		}
		return &Result{Track: t}, nil
	}

	var blob playlistBlob
	if err := json.Unmarshal([]byte(encoded), &blob); err != nil {
		return nil, err
	}

	playlist := &Playlist{
		Name:     blob.Name,
		Search:   blob.Search,
		Selected: blob.Selected,
		Tracks:   make([]*track.Track, 0, len(blob.Tracks)),
	}
	for _, enc := range blob.Tracks {
		t, err := c.codec.Decode(enc)
		if err != nil {
			return nil, err
		}
		playlist.Tracks = append(playlist.Tracks, t)
	}
	return &Result{Playlist: playlist}, nil
}
