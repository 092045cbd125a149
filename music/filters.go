package music

import (
	"Nocturne/dsp"
)

// Filter setters read the session's current settings, change one category
// and apply the whole value back, so a multi-parameter change still costs
// a single chain rebuild.

func (s *Service) SetBassBoost(guildID string, preset dsp.BoostPreset) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}

	cfg := sess.Chain().Settings()
	cfg.BassBoost = preset
	sess.ApplySettings(cfg)
	return nil
}

func (s *Service) SetKaraoke(guildID string, level, band, width float32) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if level < 0 || level > 2 {
		return reject("Karaoke level must be between 0 and 2.")
	}

	cfg := sess.Chain().Settings()
	cfg.Karaoke = dsp.KaraokeSettings{Level: level, Band: band, Width: width}
	sess.ApplySettings(cfg)
	return nil
}

func (s *Service) SetTimescale(guildID string, speed, pitch, rate float64) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if speed <= 0 || pitch <= 0 || rate <= 0 {
		return reject("Timescale multipliers must be positive.")
	}

	cfg := sess.Chain().Settings()
	cfg.Timescale = dsp.TimescaleSettings{Speed: speed, Pitch: pitch, Rate: rate}
	sess.ApplySettings(cfg)
	return nil
}

func (s *Service) SetTremolo(guildID string, depth, frequency float32) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	if depth < 0 || depth > 1 {
		return reject("Tremolo depth must be between 0 and 1.")
	}
	if frequency <= 0 {
		return reject("Tremolo frequency must be positive.")
	}

	cfg := sess.Chain().Settings()
	cfg.Tremolo = dsp.TremoloSettings{Depth: depth, Frequency: frequency}
	sess.ApplySettings(cfg)
	return nil
}

// ClearFilters resets every filter to neutral.
func (s *Service) ClearFilters(guildID string) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil {
		return reject("Nothing is playing.")
	}
	sess.Chain().Clear()
	return nil
}
