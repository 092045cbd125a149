package voice

import (
	"fmt"
	"sync"
	"time"

	"Nocturne/dsp"
	"Nocturne/session"

	"github.com/Strum355/log"
	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

const (
	frameDuration = 20 * time.Millisecond
	maxOpusBytes  = 4000
	sendTimeout   = 100 * time.Millisecond
)

// Connection is the voice transport for one guild. It owns the gateway
// voice connection and a pump goroutine that pulls frames from the
// session's player, encodes them and ships them out.
type Connection struct {
	s       *discordgo.Session
	guildID string

	mu   sync.Mutex
	vc   *discordgo.VoiceConnection
	stop chan struct{}
}

func newConnection(s *discordgo.Session, guildID string) *Connection {
	return &Connection{s: s, guildID: guildID}
}

// Open joins the channel and starts pumping frames from the source.
// Permission and capacity problems map to the session's sentinel errors
// so it can tear itself down.
func (c *Connection) Open(channelID string, source session.FrameSource) error {
	if err := c.checkJoinable(channelID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		c.stopPumpLocked()
		c.vc.Disconnect()
		c.vc = nil
	}

	vc, err := c.s.ChannelVoiceJoin(c.guildID, channelID, false, true)
	if err != nil {
		return err
	}

	if !vc.Ready {
		for i := 0; i < 20; i++ {
			time.Sleep(250 * time.Millisecond)
			if vc.Ready {
				break
			}
		}
		if !vc.Ready {
			vc.Disconnect()
			return fmt.Errorf("voice connection never became ready")
		}
	}

	encoder, err := gopus.NewEncoder(dsp.SampleRate, dsp.Channels, gopus.Audio)
	if err != nil {
		vc.Disconnect()
		return err
	}

	c.vc = vc
	c.stop = make(chan struct{})
	go c.pump(vc, encoder, source, c.stop)
	return nil
}

func (c *Connection) checkJoinable(channelID string) error {
	perms, err := c.s.State.UserChannelPermissions(c.s.State.User.ID, channelID)
	if err == nil && perms&(discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak) !=
		discordgo.PermissionVoiceConnect|discordgo.PermissionVoiceSpeak {
		return session.ErrNoPermission
	}

	channel, err := c.s.State.Channel(channelID)
	if err != nil || channel.UserLimit == 0 {
		return nil
	}
	guild, err := c.s.State.Guild(c.guildID)
	if err != nil {
		return nil
	}
	occupants := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != c.s.State.User.ID {
			occupants++
		}
	}
	if occupants >= channel.UserLimit {
		return session.ErrChannelFull
	}
	return nil
}

// pump runs until stopped, pulling one frame per tick. Speaking state
// follows whether the source currently has audio.
func (c *Connection) pump(vc *discordgo.VoiceConnection, encoder *gopus.Encoder, source session.FrameSource, stop chan struct{}) {
	speaking := false
	defer func() {
		if speaking {
			vc.Speaking(false)
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if !source.CanProvide() {
			if speaking {
				vc.Speaking(false)
				speaking = false
			}
			time.Sleep(frameDuration)
			continue
		}

		frame := source.ProvideFrame()
		if len(frame) == 0 {
			time.Sleep(frameDuration)
			continue
		}

		if !speaking {
			vc.Speaking(true)
			speaking = true
		}

		opusFrame, err := encoder.Encode(frame, dsp.FrameSize, maxOpusBytes)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"guild": c.guildID}).Error("Opus encode failed")
			return
		}
		if len(opusFrame) == 0 {
			continue
		}

		select {
		case vc.OpusSend <- opusFrame:
		case <-time.After(sendTimeout):
			log.WithFields(log.Fields{"guild": c.guildID}).Warn("Timeout sending opus frame")
		case <-stop:
			return
		}
	}
}

// Move changes the voice channel without restarting the pump.
func (c *Connection) Move(channelID string) error {
	if err := c.checkJoinable(channelID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return fmt.Errorf("not connected")
	}
	return c.vc.ChangeChannel(channelID, false, true)
}

// Close stops the pump and disconnects from voice.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPumpLocked()
	if c.vc != nil {
		c.vc.Disconnect()
		c.vc = nil
	}
	return nil
}

func (c *Connection) stopPumpLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil && c.vc.Ready
}

func (c *Connection) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}
