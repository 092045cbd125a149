package resolver

import (
	"context"
	"errors"

	"Nocturne/track"
)

// Result is the outcome of resolving an identifier: exactly one of Track
// or Playlist is set, or both are nil for "no matches".
type Result struct {
	Track    *track.Track
	Playlist *Playlist
}

// Playlist is an ordered resolution result. Search results are playlists
// with the Search flag set; callers usually take the first entry.
type Playlist struct {
	Name     string
	Tracks   []*track.Track
	Search   bool
	Selected int
}

// None reports whether the resolution found nothing.
func (r *Result) None() bool {
	return r == nil || (r.Track == nil && r.Playlist == nil)
}

// Backend is the external resolution service: identifiers may be direct
// URIs or search-style queries ("search:<terms>").
type Backend interface {
	Resolve(ctx context.Context, identifier string) (*Result, error)
}

// ErrNoMatches is reported by backends that can distinguish "nothing
// found" from a transport failure. Resolvers treat it like an empty Result.
var ErrNoMatches = errors.New("resolver: no matches")
