package handlers

import (
	"github.com/bwmarrin/discordgo"
)

// VoiceStateHandler drives the leave state machine: the bot being moved
// out destroys the session, the last listener leaving queues a delayed
// leave, and anyone joining back in cancels it.
func (h *Handlers) VoiceStateHandler(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	sess := h.registry.GetExisting(v.GuildID)
	if sess == nil {
		return
	}

	if v.UserID == s.State.User.ID {
		// Bot moved or disconnected by someone else.
		if v.ChannelID == "" && sess.Connected() {
			sess.Destroy()
		}
		return
	}

	botChannel := sess.ChannelID()
	if botChannel == "" {
		return
	}

	if v.ChannelID == botChannel {
		sess.CancelLeave()
		return
	}

	leftBotChannel := v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID == botChannel
	if !leftBotChannel {
		return
	}

	if h.listeners(s, v.GuildID, botChannel) == 0 {
		if h.allDay != nil && h.allDay.AllDay(v.GuildID) {
			return
		}
		sess.QueueLeave()
	}
}

// listeners counts the humans sharing the bot's voice channel.
func (h *Handlers) listeners(s *discordgo.Session, guildID, channelID string) int {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == s.State.User.ID {
			continue
		}
		member, err := s.State.Member(guildID, vs.UserID)
		if err == nil && member.User != nil && member.User.Bot {
			continue
		}
		count++
	}
	return count
}
