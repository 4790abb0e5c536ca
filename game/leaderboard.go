package game

import (
	"sort"
	"sync"
)

// Leaderboard accumulates per-slide score awards and keeps the current and
// previous cumulative standings.
type Leaderboard struct {
	mu sync.RWMutex

	// pointsEarned keeps every award batch in slide order so the final
	// summary can be rebuilt per slide.
	pointsEarned [][]ScoreEntry

	current  []ScoreEntry
	previous []ScoreEntry
	scores   map[Id]ScoreMessage

	summary *summaryData
}

type summaryData struct {
	stats   []SlideStat
	mapping map[Id][]uint64
}

// NewLeaderboard returns an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{scores: make(map[Id]ScoreMessage)}
}

// AddScores records one slide's awards, folds them into the cumulative
// totals and rotates the previous standings.
func (l *Leaderboard) AddScores(scores []ScoreEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := make([]ScoreEntry, len(scores))
	copy(batch, scores)
	l.pointsEarned = append(l.pointsEarned, batch)

	totals := make(map[Id]uint64, len(l.current)+len(scores))
	for _, e := range l.current {
		totals[e.Id] = e.Points
	}
	for _, e := range scores {
		totals[e.Id] += e.Points
	}

	next := make([]ScoreEntry, 0, len(totals))
	for id, points := range totals {
		next = append(next, ScoreEntry{Id: id, Points: points})
	}
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Points > next[j].Points
	})

	l.previous = l.current
	l.current = next

	l.scores = make(map[Id]ScoreMessage, len(next))
	for pos, e := range next {
		l.scores[e.Id] = ScoreMessage{Points: e.Points, Position: pos}
	}
}

// Standings returns the current and previous cumulative standings, each
// truncated for transport.
func (l *Leaderboard) Standings() (current, previous TruncatedList[ScoreEntry]) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return truncateList(l.current, truncateLimit), truncateList(l.previous, truncateLimit)
}

// Score returns one watcher's cumulative points and rank.
func (l *Leaderboard) Score(id Id) (ScoreMessage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.scores[id]
	return s, ok
}

// Summary returns the final per-slide statistics and each watcher's
// per-slide point history. When showReal is false, point values are
// collapsed to zero or one. The first call fixes the result.
func (l *Leaderboard) Summary(showReal bool) ([]SlideStat, map[Id][]uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.summary == nil {
		stats := make([]SlideStat, len(l.pointsEarned))
		mapping := make(map[Id][]uint64)
		for slide, batch := range l.pointsEarned {
			for _, e := range batch {
				if e.Points > 0 {
					stats[slide].Correct++
				} else {
					stats[slide].Wrong++
				}
				history, ok := mapping[e.Id]
				if !ok {
					history = make([]uint64, 0, len(l.pointsEarned))
				}
				for len(history) < slide {
					history = append(history, 0)
				}
				points := e.Points
				if !showReal && points > 1 {
					points = 1
				}
				mapping[e.Id] = append(history, points)
			}
		}
		for id, history := range mapping {
			for len(history) < len(l.pointsEarned) {
				history = append(history, 0)
			}
			mapping[id] = history
		}
		l.summary = &summaryData{stats: stats, mapping: mapping}
	}
	return l.summary.stats, l.summary.mapping
}
