package session

import (
	"sync"
	"time"

	"Nocturne/queue"
	"Nocturne/track"

	"github.com/Strum355/log"
)

// GuildDirectory answers whether a guild is still visible to the bot.
type GuildDirectory interface {
	GuildExists(guildID string) bool
}

// SettingsProvider is the read-only slice of guild settings the session
// layer consults directly.
type SettingsProvider interface {
	// AllDay reports whether the guild opted into always-on playback.
	AllDay(guildID string) bool
	// Volume returns the configured player volume for the guild.
	Volume(guildID string) int
}

// Deps carries everything a new session needs. The registry is built once
// in main and handed to whoever needs session access; there is no ambient
// global lookup.
type Deps struct {
	Queues      func(guildID string) queue.Queue
	Connections func(guildID string) Connection
	Provider    AudioProvider
	Codec       *track.Codec
	Notifier    Notifier
	Guilds      GuildDirectory
	Settings    SettingsProvider

	LeaveDelay    time.Duration // Delay before a queued leave fires
	SweepInterval time.Duration // How often the idle sweep runs
	IdleThreshold time.Duration // Idle time before a session is leave-queued
	QueueExpiry   time.Duration // Durable queue retention after destroy
}

func (d *Deps) fillDefaults() {
	if d.LeaveDelay == 0 {
		d.LeaveDelay = 30 * time.Second
	}
	if d.SweepInterval == 0 {
		d.SweepInterval = 3 * time.Minute
	}
	if d.IdleThreshold == 0 {
		d.IdleThreshold = 2 * time.Minute
	}
	if d.QueueExpiry == 0 {
		d.QueueExpiry = 4 * time.Hour
	}
}

// Registry creates, looks up, sweeps and destroys playback sessions, one
// per guild.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     Deps
	done     chan struct{}
	sweepWG  sync.WaitGroup
}

func NewRegistry(deps Deps) *Registry {
	deps.fillDefaults()
	return &Registry{
		sessions: make(map[string]*Session),
		deps:     deps,
		done:     make(chan struct{}),
	}
}

// Get returns the guild's session, creating it on first use. Safe under
// concurrent calls for the same guild; at most one session exists per id.
func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s
	}

	s := newSession(guildID, r)
	r.sessions[guildID] = s
	log.WithFields(log.Fields{"guild": guildID}).Info("Created playback session")
	return s
}

// GetExisting returns the guild's session without creating one.
func (r *Registry) GetExisting(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

// Destroy detaches and disposes the guild's session. Idempotent.
func (r *Registry) Destroy(guildID string) {
	r.mu.Lock()
	s, ok := r.sessions[guildID]
	if ok {
		delete(r.sessions, guildID)
	}
	r.mu.Unlock()

	if ok {
		s.cleanup()
		log.WithFields(log.Fields{"guild": guildID}).Info("Destroyed playback session")
	}
}

// Size reports the number of live sessions.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper launches the periodic idle sweep. Stop with Shutdown.
func (r *Registry) StartSweeper() {
	r.sweepWG.Add(1)
	go func() {
		defer r.sweepWG.Done()
		ticker := time.NewTicker(r.deps.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.done:
				return
			}
		}
	}()
}

// Sweep reaps dead guilds and queues a leave on sessions that have sat
// connected-but-silent past the idle threshold, unless the guild runs
// always-on playback.
func (r *Registry) Sweep() {
	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.Unlock()

	for _, s := range live {
		if r.deps.Guilds != nil && !r.deps.Guilds.GuildExists(s.GuildID) {
			r.Destroy(s.GuildID)
			continue
		}

		idle := s.Connected() && s.player.Playing() == nil && !s.LeaveQueued() &&
			time.Since(s.LastPlayedAt()) > r.deps.IdleThreshold

		if idle && (r.deps.Settings == nil || !r.deps.Settings.AllDay(s.GuildID)) {
			log.WithFields(log.Fields{"guild": s.GuildID}).Info("Queueing leave for idle session")
			s.QueueLeave()
		}
	}
}

// Shutdown stops the sweeper and destroys every live session.
func (r *Registry) Shutdown() {
	close(r.done)
	r.sweepWG.Wait()

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Destroy(id)
	}
}
