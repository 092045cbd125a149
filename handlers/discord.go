package handlers

import (
	"github.com/bwmarrin/discordgo"
)

// Directory answers guild-existence checks against the gateway state
// cache, used by the registry sweep to reap sessions for dead guilds.
type Directory struct {
	s *discordgo.Session
}

func NewDirectory(s *discordgo.Session) *Directory {
	return &Directory{s: s}
}

func (d *Directory) GuildExists(guildID string) bool {
	guild, err := d.s.State.Guild(guildID)
	return err == nil && guild != nil
}

// ChannelNotifier posts session announcements and error reports to text
// channels.
type ChannelNotifier struct {
	s *discordgo.Session
}

func NewChannelNotifier(s *discordgo.Session) *ChannelNotifier {
	return &ChannelNotifier{s: s}
}

func (n *ChannelNotifier) Notify(channelID, message string) {
	if channelID == "" {
		return
	}
	n.s.ChannelMessageSend(channelID, message)
}
