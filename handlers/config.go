package handlers

import (
	"sync"

	"github.com/bwmarrin/discordgo"

	"Nocturne/music"
	"Nocturne/session"
)

// AllDayProvider reports whether a guild opted into always-on playback.
type AllDayProvider interface {
	AllDay(guildID string) bool
}

// Handlers reacts to gateway events and maps prefix commands onto the
// music service.
type Handlers struct {
	registry *session.Registry
	music    *music.Service
	allDay   AllDayProvider

	mu        sync.Mutex
	skipVotes map[string]map[string]bool
}

func New(registry *session.Registry, svc *music.Service, allDay AllDayProvider) *Handlers {
	return &Handlers{
		registry:  registry,
		music:     svc,
		allDay:    allDay,
		skipVotes: make(map[string]map[string]bool),
	}
}

// HandlerConfig handles configs for intents and handlers
func (h *Handlers) HandlerConfig(s *discordgo.Session) {
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildVoiceStates
	s.AddHandler(h.MessageHandler)
	s.AddHandler(h.VoiceStateHandler)
	s.AddHandler(h.GuildDeleteHandler)
}

// GuildDeleteHandler tears down the session when the bot is removed from
// a guild.
func (h *Handlers) GuildDeleteHandler(s *discordgo.Session, g *discordgo.GuildDelete) {
	if sess := h.registry.GetExisting(g.ID); sess != nil {
		sess.Destroy()
	}
}
