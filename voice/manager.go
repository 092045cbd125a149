package voice

import (
	"sync"

	"Nocturne/session"

	"github.com/bwmarrin/discordgo"
)

// Manager hands out one Connection per guild and remembers them so they
// can all be torn down on shutdown.
type Manager struct {
	s *discordgo.Session

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewManager(s *discordgo.Session) *Manager {
	return &Manager{
		s:     s,
		conns: make(map[string]*Connection),
	}
}

// Connection returns the transport for a guild, creating it on first use.
// The session registry uses this as its connection factory.
func (m *Manager) Connection(guildID string) session.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[guildID]
	if !ok {
		conn = newConnection(m.s, guildID)
		m.conns[guildID] = conn
	}
	return conn
}

// CloseAll disconnects every active voice connection.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range m.conns {
		conn.Close()
	}
}
