package radio

import (
	"context"

	"Nocturne/track"
)

// Playlist draws random entries from one user's named custom playlist.
// An empty or missing playlist is not an error; the session just goes idle.
type Playlist struct {
	name  string
	owner string
	store PlaylistStore
	codec *track.Codec
}

func (p *Playlist) Name() string { return p.name }

// Owner is the user id the playlist belongs to.
func (p *Playlist) Owner() string { return p.owner }

func (p *Playlist) NextTrack(ctx context.Context, rc *Context) (*track.Track, error) {
	encoded, err := p.store.RandomTrack(p.owner, p.name)
	if err != nil {
		return nil, errNoTrack
	}

	t, err := p.codec.Decode(encoded)
	if err != nil {
		return nil, err
	}

	return t.WithContext(&track.Context{
		Requester: rc.Requester,
		Channel:   rc.Channel,
		Radio:     rc,
	}), nil
}

func (p *Playlist) Serialize(w *track.Writer) error {
	w.WriteInt32(tagPlaylist)
	w.WriteString(p.name)
	w.WriteString(p.owner)
	return w.Err()
}
