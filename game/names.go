package game

import (
	"errors"
	"strings"
	"sync"

	goaway "github.com/TwiN/go-away"
)

const maxNameLength = 30

// Name registration errors, surfaced to clients verbatim.
var (
	ErrNameUsed     = errors.New("name already in use")
	ErrNameAssigned = errors.New("watcher already has a name")
	ErrNameEmpty    = errors.New("name is empty")
	ErrNameSinful   = errors.New("name is inappropriate")
	ErrNameTooLong  = errors.New("name is too long")
)

// Names is the per-game registry of unique display names. All three views
// (id to name, name to id, taken set) move together under one lock.
type Names struct {
	mu       sync.RWMutex
	byId     map[Id]string
	byName   map[string]Id
	existing map[string]struct{}
}

// NewNames returns an empty name registry.
func NewNames() *Names {
	return &Names{
		byId:     make(map[Id]string),
		byName:   make(map[string]Id),
		existing: make(map[string]struct{}),
	}
}

// Get returns the name registered for id, if any.
func (n *Names) Get(id Id) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	name, ok := n.byId[id]
	return name, ok
}

// GetId returns the id that owns name, if any.
func (n *Names) GetId(name string) (Id, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	id, ok := n.byName[name]
	return id, ok
}

// SetName validates and registers name for id. Validation order matters:
// length is checked on the raw input, then the trimmed name must be
// non-empty, clean, unused, and the id must not already hold a name.
func (n *Names) SetName(id Id, name string) (string, error) {
	if len(name) > maxNameLength {
		return "", ErrNameTooLong
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameEmpty
	}
	if goaway.IsProfane(name) {
		return "", ErrNameSinful
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, taken := n.existing[name]; taken {
		return "", ErrNameUsed
	}
	n.existing[name] = struct{}{}
	if _, assigned := n.byId[id]; assigned {
		// Release the name we just reserved; the earlier one stands.
		delete(n.existing, name)
		return "", ErrNameAssigned
	}
	n.byId[id] = name
	n.byName[name] = id
	return name, nil
}
