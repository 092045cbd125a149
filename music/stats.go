package music

import (
	"time"

	"Nocturne/track"
	"Nocturne/utils"
)

// TrackSummary is the queue-view projection of a track reference.
type TrackSummary struct {
	Title     string
	URI       string
	Duration  string
	Requester string
}

// Stats is the session snapshot exposed for "now playing" style displays.
type Stats struct {
	Current     *TrackSummary
	Position    time.Duration
	QueueLength int
	Repeat      string
	Paused      bool
	Filters     int    // Active filters in the DSP chain
	Radio       string // Radio source name, empty when detached
	Loops       int64
}

// QueueSnapshot returns summaries of the pending tracks in consumption
// order. Positions presented to users are 1-based; index 0 here is the
// next track to play.
func (s *Service) QueueSnapshot(guildID string) ([]TrackSummary, error) {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return nil, reject("Nothing is playing.")
	}

	encoded, err := sess.Queue().Snapshot()
	if err != nil {
		return nil, err
	}

	summaries := make([]TrackSummary, 0, len(encoded))
	for _, enc := range encoded {
		t, err := sess.Codec().Decode(enc)
		if err != nil {
			continue
		}
		summaries = append(summaries, summarize(t))
	}
	return summaries, nil
}

// SessionStats reports the live playback state for a guild.
func (s *Service) SessionStats(guildID string) (*Stats, error) {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return nil, reject("Nothing is playing.")
	}

	size, err := sess.Queue().Size()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Position:    sess.Player().Position(),
		QueueLength: size,
		Repeat:      sess.Repeat().String(),
		Paused:      sess.Player().Paused(),
		Filters:     sess.Chain().Active(),
		Loops:       sess.Loops(),
	}
	if current := sess.Current(); current != nil {
		summary := summarize(current)
		stats.Current = &summary
	}
	if rc := sess.Radio(); rc != nil {
		stats.Radio = rc.Name()
	}
	return stats, nil
}

func summarize(t *track.Track) TrackSummary {
	summary := TrackSummary{
		Title:    t.Title,
		URI:      t.URI,
		Duration: utils.FormatDuration(t.Duration),
	}
	if t.Stream {
		summary.Duration = "live"
	}
	if t.Ctx != nil {
		summary.Requester = t.Ctx.Requester
	}
	return summary
}
