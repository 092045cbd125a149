package settings

import (
	"time"
)

// GuildSettings is the per-guild configuration record. The playback core
// only ever reads it; the command layer owns writes.
type GuildSettings struct {
	GuildID            string `gorm:"primaryKey"`
	AnnounceChannel    string
	Announce           bool
	AllDayMusic        bool
	MaxTrackDurationMs int64 // 0 means "use the global default"
	MaxQueueSize       int   // 0 means "use the global default"
	PremiumKey         bool  // Legacy key redemption flag
	Volume             int
}

// PremiumGuild is the donor record carrying raised quotas.
type PremiumGuild struct {
	GuildID              string `gorm:"primaryKey"`
	TrackDurationQuotaMs int64
	QueueSizeQuota       int
}

// Limits is the effective quota a session enforces, already resolved
// across guild overrides, premium records and global defaults.
type Limits struct {
	MaxTrackDuration time.Duration
	MaxQueueSize     int
}

// Key-perk constants for guilds holding a legacy premium key.
const (
	keyPerkDuration  = 360 * time.Minute
	keyPerkQueueSize = 500
)

// computeLimits resolves the effective quota. Precedence: a valid guild
// override wins, then the premium quota, then legacy key perks, then the
// global defaults. A guild override larger than the global default only
// counts when a premium record backs it.
func computeLimits(gs *GuildSettings, premium *PremiumGuild, defaults Limits) Limits {
	limits := defaults

	override := time.Duration(gs.MaxTrackDurationMs) * time.Millisecond
	validDuration := override != 0 && (premium != nil || override <= defaults.MaxTrackDuration)
	switch {
	case validDuration:
		limits.MaxTrackDuration = override
	case premium != nil:
		limits.MaxTrackDuration = time.Duration(premium.TrackDurationQuotaMs) * time.Millisecond
	case gs.PremiumKey:
		limits.MaxTrackDuration = keyPerkDuration
	}

	validSize := gs.MaxQueueSize != 0 && (premium != nil || gs.MaxQueueSize <= defaults.MaxQueueSize)
	switch {
	case validSize:
		limits.MaxQueueSize = gs.MaxQueueSize
	case premium != nil:
		limits.MaxQueueSize = premium.QueueSizeQuota
	case gs.PremiumKey:
		limits.MaxQueueSize = keyPerkQueueSize
	}

	return limits
}
