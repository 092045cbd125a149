package dsp

// PCM format shared by the whole audio path: 20ms frames of interleaved
// stereo signed 16-bit samples at 48kHz.
const (
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960 // samples per channel per 20ms frame
)

// BoostPreset selects the gain pair applied to the two lowest equalizer
// bands.
type BoostPreset int

const (
	BoostOff BoostPreset = iota
	BoostSoft
	BoostHard
	BoostExtreme
	BoostEarrape
)

var boostGains = map[BoostPreset][2]float32{
	BoostOff:     {0, 0},
	BoostSoft:    {0.25, 0.15},
	BoostHard:    {0.5, 0.25},
	BoostExtreme: {1, 0.75},
	BoostEarrape: {2, 1.5},
}

func (p BoostPreset) String() string {
	switch p {
	case BoostSoft:
		return "soft"
	case BoostHard:
		return "hard"
	case BoostExtreme:
		return "extreme"
	case BoostEarrape:
		return "earrape"
	default:
		return "off"
	}
}

// ParseBoostPreset maps a user-supplied preset name, defaulting to off.
func ParseBoostPreset(name string) BoostPreset {
	switch name {
	case "soft":
		return BoostSoft
	case "hard":
		return BoostHard
	case "extreme":
		return BoostExtreme
	case "earrape":
		return BoostEarrape
	default:
		return BoostOff
	}
}

type KaraokeSettings struct {
	Level float32 // 0 disables the filter
	Band  float32 // center frequency of the cut, Hz
	Width float32 // width of the cut, Hz
}

type TimescaleSettings struct {
	Speed float64
	Pitch float64
	Rate  float64
}

type TremoloSettings struct {
	Depth     float32 // 0 disables the filter
	Frequency float32 // LFO rate, Hz
}

// Settings is the full immutable filter configuration for one session.
// A category is enabled when its parameters differ from the neutral
// defaults; Default() is the all-neutral value.
type Settings struct {
	BassBoost BoostPreset
	Karaoke   KaraokeSettings
	Timescale TimescaleSettings
	Tremolo   TremoloSettings
}

// Default returns the neutral settings; applying them yields an empty chain.
func Default() Settings {
	return Settings{
		BassBoost: BoostOff,
		Karaoke:   KaraokeSettings{Level: 0, Band: 220, Width: 100},
		Timescale: TimescaleSettings{Speed: 1, Pitch: 1, Rate: 1},
		Tremolo:   TremoloSettings{Depth: 0, Frequency: 2},
	}
}

func (s Settings) KaraokeEnabled() bool { return s.Karaoke.Level > 0 }

func (s Settings) TimescaleEnabled() bool {
	return s.Timescale.Speed != 1 || s.Timescale.Pitch != 1 || s.Timescale.Rate != 1
}

func (s Settings) TremoloEnabled() bool { return s.Tremolo.Depth > 0 }

func (s Settings) BassBoostEnabled() bool { return s.BassBoost != BoostOff }

// Enabled reports whether any filter category is active.
func (s Settings) Enabled() bool {
	return s.KaraokeEnabled() || s.TimescaleEnabled() || s.TremoloEnabled() || s.BassBoostEnabled()
}
