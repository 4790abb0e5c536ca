package game

import (
	"errors"
	"sync"
)

// MaximumPlayers caps how many watchers a single game will register.
const MaximumPlayers = 1000

// ErrGameFull is returned when a game has reached MaximumPlayers watchers.
var ErrGameFull = errors.New("game is full")

// ValueKind is the role of a watcher within a game.
type ValueKind int

const (
	KindUnassigned ValueKind = iota
	KindHost
	KindPlayer
)

// PlayerKind says whether a player competes alone or as part of a team.
type PlayerKind int

const (
	PlayerIndividual PlayerKind = iota
	PlayerTeam
)

// PlayerValue is the player-specific part of a watcher's Value.
type PlayerValue struct {
	Kind      PlayerKind
	Name      string
	TeamName  string
	TeamId    Id
	TeamIndex int
}

// DisplayName is the name shown on rosters: the team name for team players,
// the individual name otherwise.
func (p PlayerValue) DisplayName() string {
	if p.Kind == PlayerTeam {
		return p.TeamName
	}
	return p.Name
}

// Team returns the team id when playing in teams, else the player's own id
// is expected to be used by the caller.
func (p PlayerValue) Team() (Id, bool) {
	if p.Kind == PlayerTeam {
		return p.TeamId, true
	}
	return Id{}, false
}

// Value is everything the game knows about one watcher.
type Value struct {
	Kind   ValueKind
	Player PlayerValue
}

// Watchers tracks every watcher that ever joined a game, bucketed by role.
// Entries are never removed; disconnects only drop the tunnel.
type Watchers struct {
	mu      sync.RWMutex
	mapping map[Id]Value
	reverse map[ValueKind]map[Id]struct{}
}

// NewWatchers returns an empty watcher registry.
func NewWatchers() *Watchers {
	return &Watchers{
		mapping: make(map[Id]Value),
		reverse: map[ValueKind]map[Id]struct{}{
			KindUnassigned: make(map[Id]struct{}),
			KindHost:       make(map[Id]struct{}),
			KindPlayer:     make(map[Id]struct{}),
		},
	}
}

// Add registers a new watcher. The cap counts every registration ever made,
// not just live connections.
func (w *Watchers) Add(id Id, value Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.mapping) >= MaximumPlayers {
		return ErrGameFull
	}
	w.mapping[id] = value
	w.reverse[value.Kind][id] = struct{}{}
	return nil
}

// Get returns the watcher's current value.
func (w *Watchers) Get(id Id) (Value, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.mapping[id]
	return v, ok
}

// Has reports whether id has ever been registered.
func (w *Watchers) Has(id Id) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.mapping[id]
	return ok
}

// Update replaces the watcher's value, moving it between role buckets when
// the kind changed.
func (w *Watchers) Update(id Id, value Value) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.mapping[id]; ok && old.Kind != value.Kind {
		delete(w.reverse[old.Kind], id)
	}
	w.mapping[id] = value
	w.reverse[value.Kind][id] = struct{}{}
}

// Vec returns every (id, value, tunnel) triple with a live tunnel.
func (w *Watchers) Vec(find TunnelFinder) []WatcherEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entries := make([]WatcherEntry, 0, len(w.mapping))
	for id, v := range w.mapping {
		if tun, ok := find(id); ok {
			entries = append(entries, WatcherEntry{Id: id, Value: v, Tunnel: tun})
		}
	}
	return entries
}

// SpecificVec is Vec restricted to one role.
func (w *Watchers) SpecificVec(kind ValueKind, find TunnelFinder) []WatcherEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	bucket := w.reverse[kind]
	entries := make([]WatcherEntry, 0, len(bucket))
	for id := range bucket {
		if tun, ok := find(id); ok {
			entries = append(entries, WatcherEntry{Id: id, Value: w.mapping[id], Tunnel: tun})
		}
	}
	return entries
}

// SpecificCount counts watchers of one role, connected or not.
func (w *Watchers) SpecificCount(kind ValueKind) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.reverse[kind])
}

// WatcherEntry is one row of a Vec or SpecificVec result.
type WatcherEntry struct {
	Id     Id
	Value  Value
	Tunnel Tunnel
}

// Announce sends message to every connected watcher.
func (w *Watchers) Announce(message UpdateMessage, find TunnelFinder) {
	for _, e := range w.Vec(find) {
		e.Tunnel.SendMessage(message)
	}
}

// AnnounceWith sends a per-recipient message built by synth, skipping
// recipients for which synth returns nil.
func (w *Watchers) AnnounceWith(find TunnelFinder, synth func(Id, Value) UpdateMessage) {
	for _, e := range w.Vec(find) {
		if msg := synth(e.Id, e.Value); msg != nil {
			e.Tunnel.SendMessage(msg)
		}
	}
}

// AnnounceSpecific sends message to every connected watcher of one role.
func (w *Watchers) AnnounceSpecific(kind ValueKind, message UpdateMessage, find TunnelFinder) {
	for _, e := range w.SpecificVec(kind, find) {
		e.Tunnel.SendMessage(message)
	}
}

// SendMessage delivers an update to a single watcher if connected.
func (w *Watchers) SendMessage(id Id, message UpdateMessage, find TunnelFinder) {
	if tun, ok := find(id); ok {
		tun.SendMessage(message)
	}
}

// SendState delivers a full-state sync to a single watcher if connected.
func (w *Watchers) SendState(id Id, state SyncMessage, find TunnelFinder) {
	if tun, ok := find(id); ok {
		tun.SendState(state)
	}
}

// RemoveSession closes the watcher's tunnel without forgetting the watcher,
// so a reconnect can reclaim the id.
func (w *Watchers) RemoveSession(id Id, find TunnelFinder) {
	if tun, ok := find(id); ok {
		tun.Close()
	}
}
