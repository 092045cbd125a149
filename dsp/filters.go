package dsp

import (
	"math"
)

func clamp16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// karaoke suppresses center-panned content, where lead vocals usually sit.
// Level scales how much of the opposing channel is subtracted, with a
// one-pole band emphasis around the configured frequency.
type karaoke struct {
	level float32
	alpha float64
	lowL  float64
	lowR  float64
}

func newKaraoke(s KaraokeSettings) *karaoke {
	// One-pole coefficient for the band centered at s.Band.
	rc := 1.0 / (2 * math.Pi * float64(s.Band))
	dt := 1.0 / float64(SampleRate)
	return &karaoke{
		level: s.Level,
		alpha: dt / (rc + dt),
	}
}

func (k *karaoke) Process(frame []int16) []int16 {
	level := float64(k.level)
	for i := 0; i+1 < len(frame); i += Channels {
		l := float64(frame[i])
		r := float64(frame[i+1])

		// Keep the low end intact; bass is usually center-panned too and
		// cancelling it guts the track.
		k.lowL += k.alpha * (l - k.lowL)
		k.lowR += k.alpha * (r - k.lowR)

		frame[i] = clamp16(l - level*(r-k.lowR))
		frame[i+1] = clamp16(r - level*(l-k.lowL))
	}
	return frame
}

// timescale resamples the stream by the combined speed/pitch/rate factor.
// A plain linear resampler couples pitch to speed; that matches what users
// get from a nightcore-style filter. Output is re-framed to fixed 20ms
// frames through an internal buffer.
type timescale struct {
	ratio float64
	pos   float64
	prevL float64
	prevR float64
	out   []int16
}

func newTimescale(s TimescaleSettings) *timescale {
	ratio := s.Speed * s.Pitch * s.Rate
	if ratio <= 0 {
		ratio = 1
	}
	return &timescale{ratio: ratio}
}

func (t *timescale) Process(frame []int16) []int16 {
	samples := len(frame) / Channels
	for t.pos < float64(samples) {
		idx := int(t.pos)
		frac := t.pos - float64(idx)

		l0, r0 := t.prevL, t.prevR
		if idx > 0 {
			l0 = float64(frame[(idx-1)*Channels])
			r0 = float64(frame[(idx-1)*Channels+1])
		}
		l1 := float64(frame[idx*Channels])
		r1 := float64(frame[idx*Channels+1])

		t.out = append(t.out,
			clamp16(l0+(l1-l0)*frac),
			clamp16(r0+(r1-r0)*frac))
		t.pos += t.ratio
	}
	t.pos -= float64(samples)
	t.prevL = float64(frame[len(frame)-Channels])
	t.prevR = float64(frame[len(frame)-1])

	if len(t.out) < FrameSize*Channels {
		return nil
	}
	emit := make([]int16, FrameSize*Channels)
	copy(emit, t.out[:FrameSize*Channels])
	t.out = append(t.out[:0], t.out[FrameSize*Channels:]...)
	return emit
}

// tremolo modulates amplitude with a sine LFO.
type tremolo struct {
	depth float64
	step  float64
	phase float64
}

func newTremolo(s TremoloSettings) *tremolo {
	return &tremolo{
		depth: float64(s.Depth),
		step:  2 * math.Pi * float64(s.Frequency) / float64(SampleRate),
	}
}

func (t *tremolo) Process(frame []int16) []int16 {
	for i := 0; i+1 < len(frame); i += Channels {
		gain := 1 - t.depth*(0.5+0.5*math.Sin(t.phase))
		frame[i] = clamp16(float64(frame[i]) * gain)
		frame[i+1] = clamp16(float64(frame[i+1]) * gain)
		t.phase += t.step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return frame
}

// equalizer boosts the two lowest bands with cascaded one-pole low-pass
// taps, which is all the bass presets need.
type equalizer struct {
	gain1  float64
	gain2  float64
	alpha1 float64
	alpha2 float64
	acc    [4]float64 // band1 L/R, band2 L/R
}

func newEqualizer(preset BoostPreset) *equalizer {
	gains := boostGains[preset]
	dt := 1.0 / float64(SampleRate)
	rc1 := 1.0 / (2 * math.Pi * 25)
	rc2 := 1.0 / (2 * math.Pi * 40)
	return &equalizer{
		gain1:  float64(gains[0]),
		gain2:  float64(gains[1]),
		alpha1: dt / (rc1 + dt),
		alpha2: dt / (rc2 + dt),
	}
}

func (e *equalizer) Process(frame []int16) []int16 {
	for i := 0; i+1 < len(frame); i += Channels {
		l := float64(frame[i])
		r := float64(frame[i+1])

		e.acc[0] += e.alpha1 * (l - e.acc[0])
		e.acc[1] += e.alpha1 * (r - e.acc[1])
		e.acc[2] += e.alpha2 * (l - e.acc[2])
		e.acc[3] += e.alpha2 * (r - e.acc[3])

		frame[i] = clamp16(l + e.gain1*e.acc[0] + e.gain2*e.acc[2])
		frame[i+1] = clamp16(r + e.gain1*e.acc[1] + e.gain2*e.acc[3])
	}
	return frame
}
