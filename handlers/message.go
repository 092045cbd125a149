package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"

	"Nocturne/dsp"
	"Nocturne/music"
	"Nocturne/session"
)

// MessageHandler handles prefix commands, mapping them onto the music
// service. Argument validation beyond parsing lives in the service.
func (h *Handlers) MessageHandler(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.GuildID == "" {
		return
	}

	prefix := viper.GetString("prefix")
	if len(m.Content) == 0 || len(prefix) == 0 || !strings.HasPrefix(m.Content, prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}
	command, args := fields[0], fields[1:]

	switch command {
	case "play":
		h.play(s, m, strings.Join(args, " "), false)
	case "playnext":
		h.play(s, m, strings.Join(args, " "), true)
	case "skip":
		h.respond(s, m, h.music.Skip(m.GuildID), "⏭️ Skipped")
	case "voteskip":
		h.voteSkip(s, m)
	case "pause":
		paused, err := h.music.Pause(m.GuildID)
		if err != nil {
			h.reportError(s, m, err)
			return
		}
		if paused {
			h.reply(s, m, "⏸️ Paused")
		} else {
			h.reply(s, m, "▶️ Resumed")
		}
	case "stop":
		h.respond(s, m, h.music.Stop(m.GuildID, true), "⏹️ Stopped")
	case "shuffle":
		h.respond(s, m, h.music.Shuffle(m.GuildID), "🔀 Shuffled")
	case "repeat":
		h.repeat(s, m, args)
	case "remove":
		h.remove(s, m, args)
	case "move":
		h.move(s, m, args)
	case "queue":
		h.showQueue(s, m)
	case "np":
		h.nowPlaying(s, m)
	case "radio":
		h.radio(s, m, args)
	case "stations":
		h.reply(s, m, "Stations: "+strings.Join(h.music.Stations(), ", "))
	case "bass":
		preset := dsp.BoostOff
		if len(args) > 0 {
			preset = dsp.ParseBoostPreset(args[0])
		}
		h.respond(s, m, h.music.SetBassBoost(m.GuildID, preset), "Bass boost set to "+preset.String())
	case "speed":
		h.speed(s, m, args)
	case "tremolo":
		h.tremolo(s, m, args)
	case "filters":
		if len(args) > 0 && args[0] == "off" {
			h.respond(s, m, h.music.ClearFilters(m.GuildID), "Filters cleared")
		}
	}
}

// play joins the requester's voice channel and enqueues the query.
func (h *Handlers) play(s *discordgo.Session, m *discordgo.MessageCreate, query string, playNext bool) {
	if query == "" {
		h.reply(s, m, "Give me something to play 🙂")
		return
	}

	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		h.reply(s, m, "Join a voice channel first 😉")
		return
	}

	sess := h.registry.Get(m.GuildID)
	if sess.Connected() && sess.ChannelID() != vs.ChannelID {
		h.reply(s, m, "I'm already in another voice channel 😅")
		return
	}

	enq, err := h.music.Enqueue(context.Background(), m.GuildID, query, m.Author.ID, m.ChannelID, playNext)
	if err != nil {
		h.reportError(s, m, err)
		return
	}

	if !sess.Connected() {
		if err := sess.OpenConnection(vs.ChannelID); err != nil {
			h.reply(s, m, "I could not join your voice channel 😔")
			return
		}
	}

	if enq.Playlist != "" {
		msg := fmt.Sprintf("🎶 Added **%d** tracks from **%s**", enq.Added, enq.Playlist)
		if enq.Skipped > 0 {
			msg += fmt.Sprintf(" (%d skipped)", enq.Skipped)
		}
		h.reply(s, m, msg)
		return
	}
	h.reply(s, m, fmt.Sprintf("🎶 Added **%s**", enq.Track.Title))
}

const skipVoteCooldown = 30 * time.Second

// voteSkip runs a majority skip vote among the humans in the bot's
// channel. The session gates concurrent votes and the cooldown; the
// voter set lives here because it is a rendering-layer concern.
func (h *Handlers) voteSkip(s *discordgo.Session, m *discordgo.MessageCreate) {
	sess := h.registry.GetExisting(m.GuildID)
	if sess == nil || sess.Player().Playing() == nil {
		h.reply(s, m, "Nothing is playing right now 😶")
		return
	}

	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID != sess.ChannelID() {
		h.reply(s, m, "You need to be listening to vote 😉")
		return
	}

	h.mu.Lock()
	votes := h.skipVotes[m.GuildID]
	if votes == nil {
		if !sess.BeginSkipVote(skipVoteCooldown) {
			h.mu.Unlock()
			h.reply(s, m, "A skip vote just ran, try again in a bit.")
			return
		}
		votes = make(map[string]bool)
		h.skipVotes[m.GuildID] = votes
	}
	votes[m.Author.ID] = true
	count := len(votes)
	h.mu.Unlock()

	needed := h.listeners(s, m.GuildID, sess.ChannelID())/2 + 1
	if count < needed {
		h.reply(s, m, fmt.Sprintf("🗳️ %d/%d votes to skip", count, needed))
		return
	}

	h.mu.Lock()
	delete(h.skipVotes, m.GuildID)
	h.mu.Unlock()
	sess.EndSkipVote()
	h.respond(s, m, h.music.Skip(m.GuildID), "⏭️ Vote passed, skipping")
}

func (h *Handlers) repeat(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	mode := session.RepeatNone
	if len(args) > 0 {
		switch args[0] {
		case "track", "one":
			mode = session.RepeatTrack
		case "queue", "all":
			mode = session.RepeatQueue
		}
	}
	h.respond(s, m, h.music.SetRepeat(m.GuildID, mode), "🔁 Repeat set to "+mode.String())
}

func (h *Handlers) remove(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		return
	}
	position, err := strconv.Atoi(args[0])
	if err != nil {
		return
	}

	if len(args) >= 2 {
		end, err := strconv.Atoi(args[1])
		if err != nil {
			return
		}
		removed, err := h.music.RemoveRange(m.GuildID, position, end)
		h.respond(s, m, err, fmt.Sprintf("Removed %d tracks", removed))
		return
	}
	h.respond(s, m, h.music.Remove(m.GuildID, position), "Removed track "+args[0])
}

func (h *Handlers) move(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 2 {
		return
	}
	from, err1 := strconv.Atoi(args[0])
	to, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return
	}
	h.respond(s, m, h.music.Move(m.GuildID, from, to), fmt.Sprintf("Moved track %d to %d", from, to))
}

func (h *Handlers) showQueue(s *discordgo.Session, m *discordgo.MessageCreate) {
	summaries, err := h.music.QueueSnapshot(m.GuildID)
	if err != nil {
		h.reportError(s, m, err)
		return
	}
	if len(summaries) == 0 {
		h.reply(s, m, "The queue is empty 😶")
		return
	}

	var sb strings.Builder
	for i, summary := range summaries {
		if i == 10 {
			fmt.Fprintf(&sb, "...and %d more", len(summaries)-i)
			break
		}
		fmt.Fprintf(&sb, "`%d.` %s `[%s]`\n", i+1, summary.Title, summary.Duration)
	}
	h.reply(s, m, sb.String())
}

func (h *Handlers) nowPlaying(s *discordgo.Session, m *discordgo.MessageCreate) {
	stats, err := h.music.SessionStats(m.GuildID)
	if err != nil {
		h.reportError(s, m, err)
		return
	}
	if stats.Current == nil {
		h.reply(s, m, "Nothing is playing right now 😶")
		return
	}

	msg := fmt.Sprintf("🎵 **%s** `[%s]` requested by <@%s>",
		stats.Current.Title, stats.Current.Duration, stats.Current.Requester)
	if stats.Radio != "" {
		msg += "\n📻 Radio: " + stats.Radio
	}
	h.reply(s, m, msg)
}

func (h *Handlers) radio(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		h.reply(s, m, "Name a station, `playlist <name>`, or `off`.")
		return
	}

	switch args[0] {
	case "off":
		h.respond(s, m, h.music.StopRadio(m.GuildID), "📻 Radio stopped")
	case "playlist":
		if len(args) < 2 {
			return
		}
		name := strings.Join(args[1:], " ")
		err := h.music.SetPlaylistRadio(m.GuildID, m.Author.ID, name, m.Author.ID, m.ChannelID)
		h.respond(s, m, err, "📻 Playing your playlist **"+name+"** as radio")
	default:
		station := strings.Join(args, " ")
		err := h.music.SetStationRadio(m.GuildID, station, m.Author.ID, m.ChannelID)
		h.respond(s, m, err, "📻 Tuned into **"+station+"**")
	}
}

func (h *Handlers) speed(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	speed := 1.0
	if len(args) > 0 {
		parsed, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return
		}
		speed = parsed
	}
	h.respond(s, m, h.music.SetTimescale(m.GuildID, speed, 1, 1), fmt.Sprintf("Speed set to %.2fx", speed))
}

func (h *Handlers) tremolo(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	if len(args) < 2 {
		return
	}
	depth, err1 := strconv.ParseFloat(args[0], 32)
	frequency, err2 := strconv.ParseFloat(args[1], 32)
	if err1 != nil || err2 != nil {
		return
	}
	err := h.music.SetTremolo(m.GuildID, float32(depth), float32(frequency))
	h.respond(s, m, err, "Tremolo applied")
}

// respond sends the success message, or renders the error instead.
func (h *Handlers) respond(s *discordgo.Session, m *discordgo.MessageCreate, err error, success string) {
	if err != nil {
		h.reportError(s, m, err)
		return
	}
	h.reply(s, m, success)
}

func (h *Handlers) reportError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	if music.IsRejection(err) {
		h.reply(s, m, err.Error())
		return
	}
	log.WithError(err).WithFields(log.Fields{"guild": m.GuildID}).Error("Command failed")
	h.reply(s, m, "Something went wrong on my end 😔")
}

func (h *Handlers) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	s.ChannelMessageSend(m.ChannelID, content)
}
