package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"Nocturne/dsp"
	"Nocturne/track"
)

// EndReason explains why a track stopped playing and whether the session
// may auto-advance to the next one.
type EndReason int

const (
	// EndFinished means the track played to completion.
	EndFinished EndReason = iota
	// EndLoadFailed means the track never started; advancing is safe.
	EndLoadFailed
	// EndStopped is an explicit stop.
	EndStopped
	// EndReplaced means another track took the slot.
	EndReplaced
)

// MayStartNext reports whether the scheduler should run next-track
// selection for this end reason.
func (r EndReason) MayStartNext() bool {
	return r == EndFinished || r == EndLoadFailed
}

// FrameReader yields successive 20ms PCM frames for one track. ReadFrame
// returns io.EOF once the track is exhausted.
type FrameReader interface {
	ReadFrame() ([]int16, error)
	Close() error
}

// AudioProvider opens the frame stream behind a resolved track. Opening
// may download or transcode and is allowed to block briefly.
type AudioProvider interface {
	Open(ctx context.Context, t *track.Track) (FrameReader, error)
}

// playerEvents is how the player reports back to its owning session.
// Events fire from the frame-production goroutine with no player lock held.
type playerEvents interface {
	OnTrackEnd(t *track.Track, reason EndReason)
	OnTrackStuck(t *track.Track, threshold time.Duration)
	OnTrackError(t *track.Track, err error)
}

const stuckThreshold = 10 * time.Second

// Player drives the single active playback slot of a session. Frames are
// pulled by the voice transport (CanProvide/ProvideFrame); the player
// opens the track's frame stream lazily on the first pull.
type Player struct {
	provider AudioProvider
	chain    *dsp.Chain
	events   playerEvents

	mu          sync.Mutex
	current     *track.Track
	reader      FrameReader
	paused      bool
	volume      int
	lastFrameAt time.Time
	stuckFired  bool
}

func newPlayer(provider AudioProvider, chain *dsp.Chain, events playerEvents) *Player {
	return &Player{
		provider: provider,
		chain:    chain,
		events:   events,
		volume:   100,
	}
}

// TryStart begins playback only if the slot is free, mirroring the
// "start with no interrupt" enqueue path.
func (p *Player) TryStart(t *track.Track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		return false
	}
	p.startLocked(t)
	return true
}

// Start begins playback, replacing whatever was in the slot.
func (p *Player) Start(t *track.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked(t)
}

func (p *Player) startLocked(t *track.Track) {
	p.closeReaderLocked()
	p.current = t
	p.paused = false
	p.lastFrameAt = time.Time{}
	p.stuckFired = false
}

// Stop vacates the slot without firing an end event; the caller owns the
// follow-up.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeReaderLocked()
	p.current = nil
}

func (p *Player) closeReaderLocked() {
	if p.reader != nil {
		p.reader.Close()
		p.reader = nil
	}
}

// Pause suspends or resumes frame production.
func (p *Player) Pause(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Playing returns the track currently in the slot, nil when idle.
func (p *Player) Playing() *track.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Position reports how far into the current track playback has advanced.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.Position
}

// SetVolume scales output amplitude, 0-150 with 100 as unity.
func (p *Player) SetVolume(volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if volume < 0 {
		volume = 0
	}
	if volume > 150 {
		volume = 150
	}
	p.volume = volume
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// CanProvide reports whether a ProvideFrame call could produce audio.
func (p *Player) CanProvide() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.paused
}

// ProvideFrame produces the next 20ms frame, already run through the DSP
// chain, or nil when there is nothing to send. End/stuck/error events fire
// from here, on the caller's goroutine, after the lock is released.
func (p *Player) ProvideFrame() []int16 {
	p.mu.Lock()

	if p.current == nil || p.paused {
		p.mu.Unlock()
		return nil
	}

	if p.reader == nil {
		reader, err := p.provider.Open(context.Background(), p.current)
		if err != nil {
			t := p.current
			p.current = nil
			p.mu.Unlock()
			p.events.OnTrackError(t, err)
			return nil
		}
		p.reader = reader
		p.lastFrameAt = time.Now()
	}

	frame, err := p.reader.ReadFrame()
	if err != nil {
		t := p.current
		p.closeReaderLocked()
		p.current = nil
		p.mu.Unlock()

		if errors.Is(err, io.EOF) {
			p.events.OnTrackEnd(t, EndFinished)
		} else {
			p.events.OnTrackError(t, err)
		}
		return nil
	}

	if len(frame) == 0 {
		// The reader produced nothing without ending; flag it once if this
		// goes on past the threshold.
		stuck := !p.stuckFired && !p.current.Stream &&
			time.Since(p.lastFrameAt) > stuckThreshold
		if stuck {
			p.stuckFired = true
		}
		t := p.current
		p.mu.Unlock()

		if stuck {
			p.events.OnTrackStuck(t, stuckThreshold)
		}
		return nil
	}

	p.lastFrameAt = time.Now()
	p.current.Position += 20 * time.Millisecond

	if p.volume != 100 {
		scale := float64(p.volume) / 100
		for i, s := range frame {
			v := float64(s) * scale
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			frame[i] = int16(v)
		}
	}

	chain := p.chain
	p.mu.Unlock()

	return chain.Process(frame)
}
