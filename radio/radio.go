package radio

import (
	"context"
	"errors"
	"fmt"

	"Nocturne/track"
)

// Source supplies a track when a session's queue runs dry. Each variant
// owns its serialized form; the leading tag written by Serialize is what
// Decoder dispatches on.
type Source interface {
	Name() string
	NextTrack(ctx context.Context, rc *Context) (*track.Track, error)
	Serialize(w *track.Writer) error
}

// Context binds a Source to the requester and channel that enabled it, so
// auto-selected tracks keep their provenance through persistence.
type Context struct {
	Source    Source
	Requester string
	Channel   string
}

// NextTrack asks the underlying source for a track carrying this context.
func (rc *Context) NextTrack(ctx context.Context) (*track.Track, error) {
	return rc.Source.NextTrack(ctx, rc)
}

// Name reports the underlying source's display name.
func (rc *Context) Name() string { return rc.Source.Name() }

// Serialize writes the source's tagged form.
func (rc *Context) Serialize(w *track.Writer) error { return rc.Source.Serialize(w) }

const (
	tagStation  = 1
	tagPlaylist = 2
)

// Resolver is the slice of the track loader the radio variants need.
type Resolver interface {
	ResolveTrack(ctx context.Context, identifier string) (*track.Track, error)
}

// PlaylistStore is the read side of a user's custom playlists.
type PlaylistStore interface {
	RandomTrack(owner, name string) (string, error) // returns an encoded track
}

// Decoder reconstructs radio sources from their serialized form, wiring in
// the dependencies the variants need to produce tracks.
type Decoder struct {
	Stations  *Library
	Resolver  Resolver
	Playlists PlaylistStore
	Codec     *track.Codec
}

// DecodeRadio implements track.RadioDecoder.
func (d *Decoder) DecodeRadio(r *track.Reader) (track.RadioRef, error) {
	src, err := d.Decode(r)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Decode reads one tagged source from the reader.
func (d *Decoder) Decode(r *track.Reader) (Source, error) {
	switch tag := r.ReadInt32(); tag {
	case tagStation:
		name := r.ReadString()
		if err := r.Err(); err != nil {
			return nil, err
		}
		return d.Station(name), nil
	case tagPlaylist:
		name := r.ReadString()
		owner := r.ReadString()
		if err := r.Err(); err != nil {
			return nil, err
		}
		return d.Playlist(name, owner), nil
	default:
		return nil, fmt.Errorf("radio: unknown source tag %d", tag)
	}
}

// Station builds a curated-station source backed by this decoder's library.
func (d *Decoder) Station(name string) *Station {
	return &Station{name: name, library: d.Stations, resolver: d.Resolver}
}

// Playlist builds a custom-playlist source backed by this decoder's store.
func (d *Decoder) Playlist(name, owner string) *Playlist {
	return &Playlist{name: name, owner: owner, store: d.Playlists, codec: d.Codec}
}

var errNoTrack = errors.New("radio: source produced no track")

// IsEmpty reports whether the error means the source simply had nothing to
// offer, as opposed to an infrastructure failure.
func IsEmpty(err error) bool {
	return errors.Is(err, errNoTrack)
}
