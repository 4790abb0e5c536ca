package game

import (
	"errors"
	"sync"
	"time"
)

// ErrNoVacantGameId is returned when game id allocation keeps colliding,
// which in practice means the server is at capacity.
var ErrNoVacantGameId = errors.New("no vacant game id")

const gameIdAttempts = 64

// Manager owns every live game and the shared tunnel registry.
type Manager struct {
	mu    sync.RWMutex
	games map[GameId]*Game

	tunnels *TunnelMap
	clock   Clock
	timeout time.Duration
}

// NewManager returns a manager that considers games stale after timeout
// without activity.
func NewManager(clock Clock, timeout time.Duration) *Manager {
	return &Manager{
		games:   make(map[GameId]*Game),
		tunnels: NewTunnelMap(),
		clock:   clock,
		timeout: timeout,
	}
}

// Tunnels exposes the shared tunnel registry for the transport layer.
func (m *Manager) Tunnels() *TunnelMap {
	return m.tunnels
}

// CreateGame validates config, allocates a vacant game id and registers a
// fresh game under it.
func (m *Manager) CreateGame(config FuizConfig, options Options) (GameId, *Game, error) {
	if err := config.Validate(); err != nil {
		return 0, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var gid GameId
	found := false
	for i := 0; i < gameIdAttempts; i++ {
		candidate := NewGameId()
		if _, taken := m.games[candidate]; !taken {
			gid = candidate
			found = true
			break
		}
	}
	if !found {
		return 0, nil, ErrNoVacantGameId
	}

	var game *Game
	game = NewGame(config, options, m.clock, m.tunnels.Finder(), func(alarm AlarmMessage, d time.Duration) {
		time.AfterFunc(d, func() {
			game.ReceiveAlarm(alarm)
		})
	})
	m.games[gid] = game
	return gid, game, nil
}

// Get returns the game registered under gid, finished or not.
func (m *Manager) Get(gid GameId) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gid]
	return g, ok
}

// Alive reports whether gid names a joinable game: registered, not done,
// and touched within the staleness window.
func (m *Manager) Alive(gid GameId) bool {
	g, ok := m.Get(gid)
	if !ok || g.Done() {
		return false
	}
	return m.clock.Now().Sub(g.Updated()) < m.timeout
}

// Remove ends the game and forgets its id.
func (m *Manager) Remove(gid GameId) {
	m.mu.Lock()
	g, ok := m.games[gid]
	if ok {
		delete(m.games, gid)
	}
	m.mu.Unlock()
	if ok {
		g.MarkAsDone()
	}
}

// Count returns the number of currently alive games.
func (m *Manager) Count() int {
	m.mu.RLock()
	gids := make([]GameId, 0, len(m.games))
	for gid := range m.games {
		gids = append(gids, gid)
	}
	m.mu.RUnlock()

	alive := 0
	for _, gid := range gids {
		if m.Alive(gid) {
			alive++
		}
	}
	return alive
}

// Sweep removes finished and stale games, returning how many were reaped.
func (m *Manager) Sweep() int {
	m.mu.RLock()
	gids := make([]GameId, 0, len(m.games))
	for gid := range m.games {
		gids = append(gids, gid)
	}
	m.mu.RUnlock()

	reaped := 0
	for _, gid := range gids {
		if !m.Alive(gid) {
			m.Remove(gid)
			reaped++
		}
	}
	return reaped
}
