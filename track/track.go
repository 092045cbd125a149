package track

import (
	"time"
)

// Track describes a single playable item. The descriptor fields are treated
// as immutable once the track has been resolved; only Position changes
// during playback.
type Track struct {
	ID       string        // Source identifier, e.g. a video id
	URI      string        // Canonical URI of the track
	Title    string        // Display title
	Author   string        // Uploader or artist name
	Duration time.Duration // Total length, meaningless for streams
	Stream   bool          // True for live/unbounded sources
	Position time.Duration // Current playback position

	Ctx *Context // Who requested it and where, nil for untracked plays
}

// Context carries the request metadata attached to a track. Radio is only
// set when the track was auto-selected by a radio fallback source.
type Context struct {
	Requester string // User id of the requester
	Channel   string // Channel id the request originated from
	Radio     RadioRef
}

// RadioRef is the provenance of an auto-selected track. The concrete
// variants live in the radio package; this package only needs to write
// them back out during track encoding.
type RadioRef interface {
	Name() string
	Serialize(w *Writer) error
}

// RadioDecoder reconstructs a RadioRef from its serialized form. Wired in
// by whoever builds the track Codec, keeping this package free of any
// dependency on the radio variants.
type RadioDecoder interface {
	DecodeRadio(r *Reader) (RadioRef, error)
}

// Clone returns a fresh copy of the track with playback position reset,
// preserving the request context.
func (t *Track) Clone() *Track {
	c := *t
	c.Position = 0
	return &c
}

// WithContext returns a shallow copy carrying the given request context.
func (t *Track) WithContext(ctx *Context) *Track {
	c := *t
	c.Ctx = ctx
	return &c
}
