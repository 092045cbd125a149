package music

import (
	"context"
	"errors"
	"fmt"

	"Nocturne/radio"
	"Nocturne/resolver"
	"Nocturne/session"
	"Nocturne/settings"
	"Nocturne/track"
	"Nocturne/utils"
)

// Rejection is a structured, non-fatal refusal of a request: quota hits,
// empty queues, bad indices. The calling layer renders Reason to the user.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func reject(format string, args ...any) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether an error is a user-level rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Loader resolves identifiers into tracks or playlists; implemented by
// the caching resolver.
type Loader interface {
	Resolve(ctx context.Context, identifier string) (*resolver.Result, error)
}

// LimitsProvider supplies the effective quota for a guild.
type LimitsProvider interface {
	EffectiveLimits(guildID string) settings.Limits
}

// Service is the operation surface exposed to the command layer. Every
// method takes already-validated inputs; permissions and argument parsing
// happen upstream.
type Service struct {
	registry *session.Registry
	loader   Loader
	limits   LimitsProvider
	radios   *radio.Decoder
}

func NewService(registry *session.Registry, loader Loader, limits LimitsProvider, radios *radio.Decoder) *Service {
	return &Service{
		registry: registry,
		loader:   loader,
		limits:   limits,
		radios:   radios,
	}
}

// Registry exposes the underlying session registry.
func (s *Service) Registry() *session.Registry { return s.registry }

// Enqueued summarizes an accepted enqueue request.
type Enqueued struct {
	Track    *track.Track // The single track added, nil for playlists
	Playlist string       // Playlist name when a whole playlist was added
	Added    int          // Tracks accepted
	Skipped  int          // Playlist tracks dropped by quota checks
}

// Enqueue resolves the query and commits the result to the guild's queue,
// enforcing duration and queue-size quotas. Playlists partially succeed:
// over-quota tracks are counted, not fatal.
func (s *Service) Enqueue(ctx context.Context, guildID, query, requesterID, channelID string, playNext bool) (*Enqueued, error) {
	sess := s.registry.Get(guildID)

	result, err := s.loader.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if result.None() {
		return nil, reject("Nothing found by `%s`.", query)
	}

	limits := s.limits.EffectiveLimits(guildID)
	reqCtx := &track.Context{Requester: requesterID, Channel: channelID}

	if result.Track != nil {
		if err := s.checkTrack(sess, result.Track, limits); err != nil {
			return nil, err
		}
		if err := sess.Enqueue(result.Track.WithContext(reqCtx), playNext); err != nil {
			return nil, err
		}
		return &Enqueued{Track: result.Track, Added: 1}, nil
	}

	pl := result.Playlist
	if pl.Search {
		if len(pl.Tracks) == 0 {
			return nil, reject("Nothing found by `%s`.", query)
		}
		t := pl.Tracks[0]
		if err := s.checkTrack(sess, t, limits); err != nil {
			return nil, err
		}
		if err := sess.Enqueue(t.WithContext(reqCtx), playNext); err != nil {
			return nil, err
		}
		return &Enqueued{Track: t, Added: 1}, nil
	}

	// Head inserts go to increasing offsets so the playlist keeps its
	// order in front of the existing queue.
	added, skipped, headOffset := 0, 0, 0
	for _, t := range pl.Tracks {
		if s.checkTrack(sess, t, limits) != nil {
			skipped++
			continue
		}
		if playNext {
			started, err := sess.EnqueueAt(headOffset, t.WithContext(reqCtx))
			if err != nil {
				return nil, err
			}
			if !started {
				headOffset++
			}
		} else if err := sess.Enqueue(t.WithContext(reqCtx), false); err != nil {
			return nil, err
		}
		added++
	}
	return &Enqueued{Playlist: pl.Name, Added: added, Skipped: skipped}, nil
}

// checkTrack applies the effective quota to a candidate track.
func (s *Service) checkTrack(sess *session.Session, t *track.Track, limits settings.Limits) error {
	size, err := sess.Queue().Size()
	if err != nil {
		return err
	}
	if limits.MaxQueueSize > 0 && size+1 > limits.MaxQueueSize {
		return reject("The queue can not exceed %d tracks.", limits.MaxQueueSize)
	}

	if !t.Stream && limits.MaxTrackDuration > 0 && t.Duration > limits.MaxTrackDuration {
		return reject("The track can not exceed %s.", utils.FormatDuration(limits.MaxTrackDuration))
	}
	return nil
}

// Skip advances to the next track.
func (s *Service) Skip(guildID string) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if err := sess.Skip(); err != nil {
		return reject("Nothing is playing.")
	}
	return nil
}

// Pause toggles playback, returning the new paused state.
func (s *Service) Pause(guildID string) (bool, error) {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return false, reject("Nothing is playing.")
	}
	return sess.Pause(), nil
}

// SetRepeat switches the repeat mode.
func (s *Service) SetRepeat(guildID string, mode session.RepeatMode) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	sess.SetRepeat(mode)
	return nil
}

// Stop halts playback; with clearQueue the pending tracks are dropped too.
// The session is destroyed either way.
func (s *Service) Stop(guildID string, clearQueue bool) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if clearQueue {
		if err := sess.Queue().Clear(); err != nil {
			return err
		}
	}
	sess.Destroy()
	return nil
}

// Shuffle randomizes the pending queue order.
func (s *Service) Shuffle(guildID string) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	return sess.Queue().Shuffle()
}

// Remove drops the queue entry at the given 1-based position.
func (s *Service) Remove(guildID string, position int) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if _, err := sess.Queue().RemoveAt(position - 1); err != nil {
		return reject("No track at position %d.", position)
	}
	return nil
}

// RemoveRange drops queue entries between two 1-based positions inclusive.
func (s *Service) RemoveRange(guildID string, from, to int) (int, error) {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return 0, reject("Nothing is playing.")
	}
	removed, err := sess.Queue().RemoveRange(from-1, to-1)
	if err != nil {
		return 0, reject("Invalid range %d-%d.", from, to)
	}
	return removed, nil
}

// Move relocates a queue entry between two 1-based positions.
func (s *Service) Move(guildID string, from, to int) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if err := sess.Queue().Move(from-1, to-1); err != nil {
		return reject("Invalid positions %d and %d.", from, to)
	}
	return nil
}
