package playlist

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gorm.io/gorm"
)

// CustomPlaylist is a user-owned named list of encoded tracks. Tracks are
// stored newline-joined in their serialized base64 form, the same encoding
// the durable queue uses.
type CustomPlaylist struct {
	ID     uint   `gorm:"primaryKey"`
	Owner  string `gorm:"index:idx_owner_name,unique"`
	Name   string `gorm:"index:idx_owner_name,unique"`
	Tracks string `gorm:"type:text"`
}

// ErrNotFound is returned when a playlist does not exist or is empty.
var ErrNotFound = errors.New("playlist: not found")

// Store persists custom playlists in postgres. The radio fallback only
// uses the read side.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&CustomPlaylist{}); err != nil {
		return nil, fmt.Errorf("playlist: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Tracks returns the encoded tracks of a playlist in order.
func (s *Store) Tracks(owner, name string) ([]string, error) {
	var p CustomPlaylist
	err := s.db.First(&p, "owner = ? AND name = ?", owner, name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("playlist: lookup: %w", err)
	}

	var tracks []string
	for _, line := range strings.Split(p.Tracks, "\n") {
		if line != "" {
			tracks = append(tracks, line)
		}
	}
	return tracks, nil
}

// RandomTrack draws one encoded track at random, satisfying the radio
// fallback's store interface. Empty and missing both map to ErrNotFound.
func (s *Store) RandomTrack(owner, name string) (string, error) {
	tracks, err := s.Tracks(owner, name)
	if err != nil {
		return "", err
	}
	if len(tracks) == 0 {
		return "", ErrNotFound
	}
	return tracks[rand.Intn(len(tracks))], nil
}

// AddTrack appends an encoded track, creating the playlist if needed.
func (s *Store) AddTrack(owner, name, encoded string) error {
	var p CustomPlaylist
	err := s.db.First(&p, "owner = ? AND name = ?", owner, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = CustomPlaylist{Owner: owner, Name: name, Tracks: encoded}
		if err := s.db.Create(&p).Error; err != nil {
			return fmt.Errorf("playlist: create: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("playlist: lookup: %w", err)
	}

	p.Tracks = strings.TrimSuffix(p.Tracks, "\n") + "\n" + encoded
	if err := s.db.Save(&p).Error; err != nil {
		return fmt.Errorf("playlist: save: %w", err)
	}
	return nil
}

// Delete removes a playlist entirely.
func (s *Store) Delete(owner, name string) error {
	err := s.db.Delete(&CustomPlaylist{}, "owner = ? AND name = ?", owner, name).Error
	if err != nil {
		return fmt.Errorf("playlist: delete: %w", err)
	}
	return nil
}
