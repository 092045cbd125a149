package dsp

import (
	"sync"
)

// Filter transforms one PCM frame into zero or more output samples.
// Implementations keep their own state and are never shared across chains.
type Filter interface {
	Process(frame []int16) []int16
}

// Chain is the active filter pipeline for one session. Apply swaps the
// whole chain under lock, so a rebuild while audio is flowing just makes
// the next frame go through the new filters.
type Chain struct {
	mu       sync.Mutex
	filters  []Filter
	settings Settings
}

func NewChain() *Chain {
	return &Chain{settings: Default()}
}

// Apply installs new settings and rebuilds the chain once. The fixed
// composition order is karaoke, timescale, tremolo, equalizer.
func (c *Chain) Apply(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = s
	c.filters = c.filters[:0]

	if s.KaraokeEnabled() {
		c.filters = append(c.filters, newKaraoke(s.Karaoke))
	}
	if s.TimescaleEnabled() {
		c.filters = append(c.filters, newTimescale(s.Timescale))
	}
	if s.TremoloEnabled() {
		c.filters = append(c.filters, newTremolo(s.Tremolo))
	}
	if s.BassBoostEnabled() {
		c.filters = append(c.filters, newEqualizer(s.BassBoost))
	}
}

// Clear resets every parameter to neutral and empties the chain.
func (c *Chain) Clear() {
	c.Apply(Default())
}

// Settings returns the currently applied configuration.
func (c *Chain) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Active reports how many filters are currently in the chain.
func (c *Chain) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filters)
}

// Process runs one frame through the chain. With no filters enabled the
// frame passes through untouched.
func (c *Chain) Process(frame []int16) []int16 {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.filters {
		frame = f.Process(frame)
		if len(frame) == 0 {
			// A rate-changing filter may be buffering; nothing to emit yet.
			return nil
		}
	}
	return frame
}
