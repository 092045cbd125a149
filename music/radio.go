package music

import (
	"Nocturne/radio"
)

// SetStationRadio attaches a curated-station fallback to the session.
func (s *Service) SetStationRadio(guildID, station, requesterID, channelID string) error {
	if !s.radios.Stations.Has(station) {
		return reject("No station named `%s`.", station)
	}

	sess := s.registry.Get(guildID)
	sess.SetRadio(&radio.Context{
		Source:    s.radios.Station(station),
		Requester: requesterID,
		Channel:   channelID,
	})
	return nil
}

// SetPlaylistRadio attaches a user's custom playlist as the fallback.
func (s *Service) SetPlaylistRadio(guildID, owner, name, requesterID, channelID string) error {
	sess := s.registry.Get(guildID)
	sess.SetRadio(&radio.Context{
		Source:    s.radios.Playlist(name, owner),
		Requester: requesterID,
		Channel:   channelID,
	})
	return nil
}

// StopRadio detaches the radio fallback; the session goes idle once the
// queue drains.
func (s *Service) StopRadio(guildID string) error {
	sess := s.registry.GetExisting(guildID)
	if sess == nil || sess.Radio() == nil {
		return reject("No radio is playing.")
	}
	sess.SetRadio(nil)
	return nil
}

// Stations lists the available curated stations.
func (s *Service) Stations() []string {
	return s.radios.Stations.Names()
}
