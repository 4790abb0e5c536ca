package main

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Stats counts games hosted by this server. The all-time counter survives
// restarts when a stats file is configured; persistence is best-effort.
type Stats struct {
	allTime      atomic.Uint64
	sinceRestart atomic.Uint64
	path         string
}

func newStats(path string) *Stats {
	s := &Stats{path: path}
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64); err == nil {
				s.allTime.Store(n)
			}
		}
	}
	return s
}

// GameCreated bumps both counters and persists the all-time count.
func (s *Stats) GameCreated() {
	s.sinceRestart.Add(1)
	total := s.allTime.Add(1)
	if s.path != "" {
		_ = os.WriteFile(s.path, []byte(strconv.FormatUint(total, 10)+"\n"), 0o644)
	}
}

func (s *Stats) AllTime() uint64 {
	return s.allTime.Load()
}

func (s *Stats) SinceRestart() uint64 {
	return s.sinceRestart.Load()
}
