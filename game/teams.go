package game

import (
	"bytes"
	"math/rand"
	"sort"
	"strings"
	"sync"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gertd/go-pluralize"
)

// TeamOptions configures team formation for a game.
type TeamOptions struct {
	// Size is the preferred number of players per team.
	Size int `json:"size"`
	// AssignRandom ignores player preferences and groups at random.
	AssignRandom bool `json:"assign_random"`
}

// Teams forms and tracks player teams. Preferences accumulate during the
// lobby; Finalize freezes the composition once.
type Teams struct {
	mu sync.Mutex

	options     TeamOptions
	preferences map[Id][]Id

	// Set by Finalize.
	finalized  bool
	teams      []teamInfo
	playerTeam map[Id]int
	next       int
}

type teamInfo struct {
	id      Id
	name    string
	players []Id
}

// NewTeams returns a team tracker for the given options.
func NewTeams(options TeamOptions) *Teams {
	if options.Size < 1 {
		options.Size = 1
	}
	return &Teams{
		options:     options,
		preferences: make(map[Id][]Id),
	}
}

// SetPreferences records a player's preferred teammates, capped to the team
// size.
func (t *Teams) SetPreferences(id Id, prefs []Id) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	if len(prefs) > t.options.Size {
		prefs = prefs[:t.options.Size]
	}
	t.preferences[id] = append([]Id(nil), prefs...)
}

// Finalized reports whether team composition is frozen.
func (t *Teams) Finalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finalized
}

func lessId(a, b Id) bool {
	return bytes.Compare(a.UUID[:], b.UUID[:]) < 0
}

func minId(a, b Id) Id {
	if lessId(b, a) {
		return b
	}
	return a
}

// Finalize groups the given players into teams, names each team and returns
// the team assignments. It runs at most once; later calls return the frozen
// result.
func (t *Teams) Finalize(players []Id, names *Names, rng *rand.Rand) []TeamAssignment {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return t.assignmentsLocked()
	}
	t.finalized = true
	t.playerTeam = make(map[Id]int)

	if len(players) == 0 {
		return nil
	}

	teamCount := (len(players) + t.options.Size - 1) / t.options.Size
	if teamCount < 1 {
		teamCount = 1
	}

	playerSet := make(map[Id]struct{}, len(players))
	for _, id := range players {
		playerSet[id] = struct{}{}
	}

	// Each player anchors to the smallest id among itself and its mutual
	// preferences, so mutual pairs land in the same bucket.
	anchor := make(map[Id]Id, len(players))
	for _, id := range players {
		a := id
		if !t.options.AssignRandom {
			for _, pref := range t.preferences[id] {
				if _, live := playerSet[pref]; !live {
					continue
				}
				if mutual(t.preferences[pref], id) {
					a = minId(a, pref)
				}
			}
		}
		anchor[id] = a
	}

	buckets := make(map[Id][]Id)
	for _, id := range players {
		buckets[anchor[id]] = append(buckets[anchor[id]], id)
	}

	groups := make([][]Id, 0, len(buckets))
	for _, members := range buckets {
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		groups = append(groups, members)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return lessId(groups[i][0], groups[j][0])
	})

	// Fold surplus groups into the largest existing group that still has
	// room, so teams stay near the preferred size.
	for len(groups) > teamCount {
		last := groups[len(groups)-1]
		groups = groups[:len(groups)-1]
		best := -1
		for i, g := range groups {
			if len(g)+len(last) > t.options.Size {
				continue
			}
			if best == -1 || len(g) > len(groups[best]) {
				best = i
			}
		}
		if best == -1 {
			// Nothing fits; grow the smallest team.
			best = len(groups) - 1
		}
		groups[best] = append(groups[best], last...)
	}

	t.teams = make([]teamInfo, 0, len(groups))
	for index, members := range groups {
		id := NewId()
		name := teamName(names, id)
		t.teams = append(t.teams, teamInfo{id: id, name: name, players: members})
		for _, p := range members {
			t.playerTeam[p] = index
		}
	}
	return t.assignmentsLocked()
}

func mutual(prefs []Id, id Id) bool {
	for _, p := range prefs {
		if p == id {
			return true
		}
	}
	return false
}

var pluralizer = pluralize.NewClient()

// teamName draws pluralized petnames until one registers cleanly.
func teamName(names *Names, id Id) string {
	for {
		words := strings.Fields(petname.Generate(2, " "))
		if len(words) > 0 {
			last := len(words) - 1
			words[last] = pluralizer.Plural(words[last])
		}
		for i, w := range words {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
		candidate := strings.Join(words, " ")
		if assigned, err := names.SetName(id, candidate); err == nil {
			return assigned
		} else if err == ErrNameAssigned {
			name, _ := names.Get(id)
			return name
		}
	}
}

// TeamAssignment describes one player's placement after Finalize.
type TeamAssignment struct {
	Player   Id
	TeamId   Id
	TeamName string
	Index    int
}

func (t *Teams) assignmentsLocked() []TeamAssignment {
	out := make([]TeamAssignment, 0, len(t.playerTeam))
	for _, team := range t.teams {
		for i, p := range team.players {
			out = append(out, TeamAssignment{
				Player:   p,
				TeamId:   team.id,
				TeamName: team.name,
				Index:    i,
			})
		}
	}
	return out
}

// AddPlayer places a late joiner on an existing team round-robin and returns
// the assignment. It is idempotent for players already placed.
func (t *Teams) AddPlayer(id Id) (TeamAssignment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.finalized || len(t.teams) == 0 {
		return TeamAssignment{}, false
	}
	if index, ok := t.playerTeam[id]; ok {
		team := t.teams[index]
		return TeamAssignment{
			Player:   id,
			TeamId:   team.id,
			TeamName: team.name,
			Index:    indexOf(team.players, id),
		}, true
	}
	index := t.next % len(t.teams)
	t.next++
	t.teams[index].players = append(t.teams[index].players, id)
	t.playerTeam[id] = index
	team := t.teams[index]
	return TeamAssignment{
		Player:   id,
		TeamId:   team.id,
		TeamName: team.name,
		Index:    len(team.players) - 1,
	}, true
}

func indexOf(ids []Id, id Id) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// TeamMembers returns the member ids of the team id was placed on.
func (t *Teams) TeamMembers(id Id) ([]Id, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	index, ok := t.playerTeam[id]
	if !ok {
		return nil, false
	}
	return append([]Id(nil), t.teams[index].players...), true
}

// TeamIndex returns a player's position among its currently alive teammates.
func (t *Teams) TeamIndex(id Id, alive func(Id) bool) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	index, ok := t.playerTeam[id]
	if !ok {
		return 0, false
	}
	pos := 0
	for _, p := range t.teams[index].players {
		if p == id {
			return pos, true
		}
		if alive(p) {
			pos++
		}
	}
	return 0, false
}

// AllIds returns the ids of all formed teams.
func (t *Teams) AllIds() []Id {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]Id, len(t.teams))
	for i, team := range t.teams {
		ids[i] = team.id
	}
	return ids
}

// Names returns the display names of all formed teams.
func (t *Teams) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, len(t.teams))
	for i, team := range t.teams {
		names[i] = team.name
	}
	return names
}
