package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Nocturne/dsp"
	"Nocturne/queue"
	"Nocturne/radio"
	"Nocturne/track"

	"github.com/Strum355/log"
)

// RepeatMode controls what happens when a track finishes.
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatTrack
	RepeatQueue
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatTrack:
		return "track"
	case RepeatQueue:
		return "queue"
	default:
		return "none"
	}
}

// FrameSource produces 20ms PCM frames on demand; the Player implements it.
type FrameSource interface {
	CanProvide() bool
	ProvideFrame() []int16
}

// Connection is the voice transport handle for one guild, provided by the
// voice package and faked in tests. Open installs the given source as the
// connection's audio feed.
type Connection interface {
	Open(channelID string, source FrameSource) error
	Move(channelID string) error
	Close() error
	Connected() bool
	ChannelID() string
}

// Connection errors the session reacts to by destroying itself.
var (
	ErrNoPermission = errors.New("session: missing permission to connect")
	ErrChannelFull  = errors.New("session: voice channel is full")
)

// Notifier is the sliver of the message-rendering layer the session needs:
// posting playback announcements and error reports to a channel.
type Notifier interface {
	Notify(channelID, message string)
}

const (
	announceCooldown = 10 * time.Second
	errorCooldown    = 6 * time.Second
	maxErrorReports  = 20
)

// Session is the live playback state for one guild: the player slot, the
// durable queue, filters, repeat mode, radio fallback and the voice
// connection lifecycle. All mutating operations serialize on one mutex.
type Session struct {
	GuildID string

	registry *Registry
	player   *Player
	queue    queue.Queue
	chain    *dsp.Chain
	codec    *track.Codec
	conn     Connection
	notifier Notifier

	mu        sync.Mutex
	repeat    RepeatMode
	radioCtx  *radio.Context
	current   *track.Track
	lastTrack *track.Track
	loops     int64
	destroyed bool

	votingSkip    bool
	votingPlay    bool
	lastSkipVote  time.Time
	lastPlayVote  time.Time
	lastPlayedAt  time.Time
	lastAnnounced time.Time
	lastErrorAt   time.Time
	errorCount    int

	leaveTask *Task
}

func newSession(guildID string, r *Registry) *Session {
	s := &Session{
		GuildID:      guildID,
		registry:     r,
		queue:        r.deps.Queues(guildID),
		chain:        dsp.NewChain(),
		codec:        r.deps.Codec,
		conn:         r.deps.Connections(guildID),
		notifier:     r.deps.Notifier,
		lastPlayedAt: time.Now(),
	}
	s.player = newPlayer(r.deps.Provider, s.chain, s)
	s.leaveTask = NewTask(r.deps.LeaveDelay, s.Destroy)

	if r.deps.Settings != nil {
		s.player.SetVolume(r.deps.Settings.Volume(guildID))
	}
	return s
}

// Player exposes the playback slot for the voice transport's frame pump.
func (s *Session) Player() *Player { return s.player }

// Queue exposes the session's durable queue.
func (s *Session) Queue() queue.Queue { return s.queue }

// Chain exposes the DSP pipeline, e.g. for stats rendering.
func (s *Session) Chain() *dsp.Chain { return s.chain }

// Codec exposes the track codec bound to this session.
func (s *Session) Codec() *track.Codec { return s.codec }

// Enqueue starts the track immediately when the player slot is free,
// otherwise persists it at the head (playNext) or tail of the queue.
func (s *Session) Enqueue(t *track.Track, playNext bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return errors.New("session: destroyed")
	}

	if s.player.TryStart(t) {
		s.noteStarted(t)
		return nil
	}

	encoded, err := s.codec.Encode(t)
	if err != nil {
		return fmt.Errorf("session: encode track: %w", err)
	}
	if playNext {
		return s.queue.InsertAt(0, encoded)
	}
	return s.queue.Offer(encoded)
}

// EnqueueAt persists the track at a queue offset so multi-track head
// inserts keep their arrival order. A free player slot is still claimed
// first; the returned flag reports the claim so callers keep their
// offsets stable.
func (s *Session) EnqueueAt(offset int, t *track.Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false, errors.New("session: destroyed")
	}

	if s.player.TryStart(t) {
		s.noteStarted(t)
		return true, nil
	}

	encoded, err := s.codec.Encode(t)
	if err != nil {
		return false, fmt.Errorf("session: encode track: %w", err)
	}
	return false, s.queue.InsertAt(offset, encoded)
}

// noteStarted does the bookkeeping for a track entering the slot: the
// loop counter, announcement and the last-played clock. The end handlers
// clear the slot before selection runs, so the identifier comparison
// falls back to the track that just finished. Lock held.
func (s *Session) noteStarted(t *track.Track) {
	prev := s.current
	if prev == nil {
		prev = s.lastTrack
	}
	if prev != nil && prev.ID == t.ID {
		s.loops++
	} else {
		s.loops = 0
	}

	announce := prev == nil || prev.ID != t.ID
	s.current = t
	s.lastPlayedAt = time.Now()

	if announce && s.notifier != nil && t.Ctx != nil &&
		time.Since(s.lastAnnounced) > announceCooldown {
		s.notifier.Notify(t.Ctx.Channel, fmt.Sprintf("Now playing **%s**.", t.Title))
		s.lastAnnounced = time.Now()
	}
}

// OnTrackEnd records the finished track and runs next-track selection when
// the end reason allows auto-advance. Fired by the player's frame pump.
func (s *Session) OnTrackEnd(t *track.Track, reason EndReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	s.lastPlayedAt = time.Now()
	s.lastTrack = t
	s.current = nil

	if reason.MayStartNext() {
		s.nextTrack()
	}
}

// OnTrackStuck reports a wedged track and recovers by advancing. Repeat is
// dropped so a broken track cannot loop.
func (s *Session) OnTrackStuck(t *track.Track, threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.WithFields(log.Fields{
		"guild": s.GuildID,
		"track": t.ID,
	}).Error("Track stuck past threshold, skipping")

	s.repeat = RepeatNone
	if s.notifier != nil && t.Ctx != nil {
		s.notifier.Notify(t.Ctx.Channel,
			fmt.Sprintf("The track **%s** got stuck and was skipped.", t.Title))
	}

	s.lastTrack = t
	s.current = nil
	s.player.Stop()
	s.nextTrack()
}

// OnTrackError handles a mid-play failure: repeat is reset, the failure is
// reported (throttled) and the session advances rather than dying.
func (s *Session) OnTrackError(t *track.Track, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.repeat = RepeatNone

	log.WithError(err).WithFields(log.Fields{
		"guild": s.GuildID,
		"track": t.ID,
	}).Error("Playback error")

	if s.notifier != nil && t.Ctx != nil && s.errorCount < maxErrorReports &&
		time.Since(s.lastErrorAt) > errorCooldown {
		s.notifier.Notify(t.Ctx.Channel,
			fmt.Sprintf("An error occurred while playing **%s**.", t.Title))
		s.errorCount++
		s.lastErrorAt = time.Now()
	}

	s.lastTrack = t
	s.current = nil
	s.nextTrack()
}

// nextTrack is the deterministic selection algorithm: repeat handling
// first, then the queue head, then the radio fallback, then idle. Lock held.
func (s *Session) nextTrack() {
	if s.repeat != RepeatNone && s.lastTrack != nil {
		cloned := s.lastTrack.Clone()

		if s.repeat == RepeatTrack {
			s.player.Start(cloned)
			s.noteStarted(cloned)
			return
		}

		// RepeatQueue: recycle the finished track to the tail, then fall
		// through to normal selection.
		if encoded, err := s.codec.Encode(cloned); err == nil {
			if err := s.queue.Offer(encoded); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"guild": s.GuildID,
				}).Error("Unable to recycle track for queue repeat")
			}
		}
	}

	encoded, ok, err := s.queue.PollHead()
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild": s.GuildID,
		}).Error("Queue poll failed, stopping playback")
		s.player.Stop()
		return
	}

	if ok {
		t, err := s.codec.Decode(encoded)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"guild": s.GuildID,
			}).Error("Dropping undecodable queue entry")
			s.nextTrack()
			return
		}
		s.player.Start(t)
		s.noteStarted(t)
		return
	}

	if s.radioCtx == nil {
		s.player.Stop()
		return
	}

	// Radio lookup is asynchronous; the result re-enters the session lock.
	rc := s.radioCtx
	last := s.lastTrack
	go s.playFromRadio(rc, last)
}

func (s *Session) playFromRadio(rc *radio.Context, last *track.Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t, err := rc.NextTrack(ctx)

	// Avoid replaying the identifier that just finished on station radio;
	// one reroll is enough effort.
	if err == nil && t != nil && last != nil && t.ID == last.ID {
		if _, station := rc.Source.(*radio.Station); station {
			if again, err2 := rc.NextTrack(ctx); err2 == nil && again != nil {
				t = again
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}

	if err != nil || t == nil {
		if err != nil && !radio.IsEmpty(err) {
			log.WithError(err).WithFields(log.Fields{
				"guild": s.GuildID,
			}).Error("Radio lookup failed")
		}
		s.player.Stop()
		return
	}

	s.player.Start(t)
	s.noteStarted(t)
}

// Skip drops the current track and advances. Returns an error when there
// is nothing to skip.
func (s *Session) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.player.Playing()
	if t == nil {
		return errors.New("session: nothing is playing")
	}

	s.lastTrack = t
	s.current = nil
	s.player.Stop()
	s.nextTrack()
	return nil
}

// Pause toggles playback, returning the new paused state.
func (s *Session) Pause() bool {
	paused := !s.player.Paused()
	s.player.Pause(paused)
	return paused
}

func (s *Session) SetRepeat(mode RepeatMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeat = mode
}

func (s *Session) Repeat() RepeatMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repeat
}

// SetRadio installs or clears (nil) the radio fallback source.
func (s *Session) SetRadio(rc *radio.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radioCtx = rc
}

func (s *Session) Radio() *radio.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radioCtx
}

// ApplySettings rebuilds the filter chain once for the whole new value.
func (s *Session) ApplySettings(settings dsp.Settings) {
	s.chain.Apply(settings)
}

// Current returns the playing track, nil when idle.
func (s *Session) Current() *track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// LastTrack returns the most recently finished track.
func (s *Session) LastTrack() *track.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTrack
}

// Loops reports how many consecutive times the same identifier replayed.
func (s *Session) Loops() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops
}

// Idle reports whether nothing is playing and the queue is empty.
func (s *Session) Idle() bool {
	if s.player.Playing() != nil {
		return false
	}
	size, err := s.queue.Size()
	return err == nil && size == 0
}

// LastPlayedAt is the time playback last started or ended.
func (s *Session) LastPlayedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPlayedAt
}

// OpenConnection joins the voice channel and installs this session as the
// frame source. Permission and capacity failures destroy the session;
// there is no point keeping one alive without a connection.
func (s *Session) OpenConnection(channelID string) error {
	err := s.conn.Open(channelID, s.player)
	if err != nil {
		if errors.Is(err, ErrNoPermission) || errors.Is(err, ErrChannelFull) {
			s.Destroy()
		}
		return err
	}
	return nil
}

// MoveConnection pauses playback, reopens on the new channel and resumes.
func (s *Session) MoveConnection(channelID string) error {
	if !s.conn.Connected() {
		s.Destroy()
		return errors.New("session: not connected")
	}

	s.player.Pause(true)
	if err := s.conn.Move(channelID); err != nil {
		s.Destroy()
		return err
	}
	s.player.Pause(false)
	return nil
}

// Connected reports whether the voice connection is up.
func (s *Session) Connected() bool {
	return s.conn.Connected()
}

// ChannelID is the voice channel the session is connected to, empty when
// disconnected.
func (s *Session) ChannelID() string {
	return s.conn.ChannelID()
}

// QueueLeave arms the delayed disconnect and pauses playback. Re-arming
// replaces the previous timer rather than stacking.
func (s *Session) QueueLeave() {
	s.leaveTask.Start()
	s.player.Pause(true)
}

// CancelLeave disarms a queued leave and resumes playback.
func (s *Session) CancelLeave() {
	s.leaveTask.Stop()
	s.player.Pause(false)
}

// LeaveQueued reports whether a disconnect is pending.
func (s *Session) LeaveQueued() bool {
	return s.leaveTask.Running()
}

// BeginSkipVote opens a skip vote unless one is running or the cooldown
// has not elapsed.
func (s *Session) BeginSkipVote(cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votingSkip || time.Since(s.lastSkipVote) < cooldown {
		return false
	}
	s.votingSkip = true
	s.lastSkipVote = time.Now()
	return true
}

// EndSkipVote closes a skip vote.
func (s *Session) EndSkipVote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votingSkip = false
}

// BeginPlayVote opens a play vote unless one is running or on cooldown.
func (s *Session) BeginPlayVote(cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votingPlay || time.Since(s.lastPlayVote) < cooldown {
		return false
	}
	s.votingPlay = true
	s.lastPlayVote = time.Now()
	return true
}

// EndPlayVote closes a play vote.
func (s *Session) EndPlayVote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votingPlay = false
}

// Destroy detaches the session from the registry and disposes it.
func (s *Session) Destroy() {
	s.registry.Destroy(s.GuildID)
}

// cleanup releases everything the session holds. The durable queue is not
// cleared, only given an idle expiry so a quick reconnect can resume it.
func (s *Session) cleanup() {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()

	s.leaveTask.Stop()
	s.player.Stop()
	s.chain.Clear()

	if err := s.queue.SetExpiry(s.registry.deps.QueueExpiry); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild": s.GuildID,
		}).Error("Unable to set queue expiry")
	}

	if err := s.conn.Close(); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"guild": s.GuildID,
		}).Error("Voice disconnect failed")
	}
}
