package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/Strum355/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Store reads guild settings and premium records from postgres.
type Store struct {
	db       *gorm.DB
	defaults Limits
}

// NewStore connects with a retry loop; postgres tends to come up after the
// bot in compose deployments.
func NewStore(dsn string, defaults Limits) (*Store, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			sqlDB, _ := db.DB()
			if pingErr := sqlDB.Ping(); pingErr == nil {
				break
			}
		}
		log.Info("Waiting for postgres to be ready...")
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("settings: connect: %w", err)
	}

	if err := db.AutoMigrate(&GuildSettings{}, &PremiumGuild{}); err != nil {
		return nil, fmt.Errorf("settings: migrate: %w", err)
	}

	return &Store{db: db, defaults: defaults}, nil
}

// DB exposes the underlying connection for stores sharing the database.
func (s *Store) DB() *gorm.DB { return s.db }

// Guild returns the settings record, or the zero record when none exists.
func (s *Store) Guild(guildID string) *GuildSettings {
	var gs GuildSettings
	err := s.db.First(&gs, "guild_id = ?", guildID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("Guild settings lookup failed")
		}
		return &GuildSettings{GuildID: guildID}
	}
	return &gs
}

func (s *Store) premium(guildID string) *PremiumGuild {
	var pg PremiumGuild
	err := s.db.First(&pg, "guild_id = ?", guildID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("Premium guild lookup failed")
		}
		return nil
	}
	return &pg
}

// EffectiveLimits resolves the quota the playback core should enforce for
// the guild.
func (s *Store) EffectiveLimits(guildID string) Limits {
	return computeLimits(s.Guild(guildID), s.premium(guildID), s.defaults)
}

// AllDay reports whether the guild opted into always-on playback. Only
// premium guilds (record or legacy key) get to keep the bot around.
func (s *Store) AllDay(guildID string) bool {
	gs := s.Guild(guildID)
	return (s.premium(guildID) != nil || gs.PremiumKey) && gs.AllDayMusic
}

// Volume returns the configured player volume, defaulting to unity.
func (s *Store) Volume(guildID string) int {
	gs := s.Guild(guildID)
	if gs.Volume <= 0 {
		return 100
	}
	return gs.Volume
}
