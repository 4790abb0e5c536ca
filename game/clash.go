package game

import "sync"

const tunnelShards = 16

// TunnelMap is a small hash-sharded map from watcher ids to tunnels. It is
// owned by the Manager and read on the broadcast hot path without touching
// any per-game lock.
type TunnelMap struct {
	shards [tunnelShards]tunnelShard
}

type tunnelShard struct {
	mu sync.RWMutex
	m  map[Id]Tunnel
}

// NewTunnelMap returns an empty tunnel registry.
func NewTunnelMap() *TunnelMap {
	t := &TunnelMap{}
	for i := range t.shards {
		t.shards[i].m = make(map[Id]Tunnel)
	}
	return t
}

func (t *TunnelMap) shard(id Id) *tunnelShard {
	// The id is already uniformly random; any byte works as a shard key.
	return &t.shards[id.UUID[0]%tunnelShards]
}

func (t *TunnelMap) Get(id Id) (Tunnel, bool) {
	s := t.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	tun, ok := s.m[id]
	return tun, ok
}

func (t *TunnelMap) Set(id Id, tunnel Tunnel) {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = tunnel
}

// Remove drops the tunnel for id and returns it, if any. The watcher's
// registry entry is untouched so the id can be reclaimed on reconnect.
func (t *TunnelMap) Remove(id Id) (Tunnel, bool) {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	tun, ok := s.m[id]
	if ok {
		delete(s.m, id)
	}
	return tun, ok
}

func (t *TunnelMap) Len() int {
	total := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		total += len(s.m)
		s.mu.RUnlock()
	}
	return total
}

// Finder returns a TunnelFinder closure over this registry.
func (t *TunnelMap) Finder() TunnelFinder {
	return t.Get
}
