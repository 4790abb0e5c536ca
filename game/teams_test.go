package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestFinalizeGroupsMutualPreferences(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 2})
	names := NewNames()

	a, b, c, d := NewId(), NewId(), NewId(), NewId()
	teams.SetPreferences(a, []Id{b})
	teams.SetPreferences(b, []Id{a})

	assignments := teams.Finalize([]Id{a, b, c, d}, names, testRng())
	require.Len(t, assignments, 4)

	byPlayer := make(map[Id]TeamAssignment)
	for _, x := range assignments {
		byPlayer[x.Player] = x
	}
	require.Equal(t, byPlayer[a].TeamId, byPlayer[b].TeamId, "mutual preferences must share a team")
	require.Len(t, teams.AllIds(), 2)
}

func TestFinalizeOneSidedPreferenceIgnored(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 2})
	names := NewNames()

	a, b, c, d := NewId(), NewId(), NewId(), NewId()
	teams.SetPreferences(a, []Id{b})

	assignments := teams.Finalize([]Id{a, b, c, d}, names, testRng())
	require.Len(t, assignments, 4)
	require.Len(t, teams.AllIds(), 2)
}

func TestFinalizeTeamCount(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 3, AssignRandom: true})
	names := NewNames()

	players := make([]Id, 7)
	for i := range players {
		players[i] = NewId()
	}
	teams.Finalize(players, names, testRng())

	// ceil(7/3) teams, each within the size bound after merging.
	require.Len(t, teams.AllIds(), 3)
}

func TestFinalizeNamesAreUnique(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 1, AssignRandom: true})
	names := NewNames()

	players := make([]Id, 20)
	for i := range players {
		players[i] = NewId()
	}
	teams.Finalize(players, names, testRng())

	seen := make(map[string]struct{})
	for _, name := range teams.Names() {
		require.NotEmpty(t, name)
		_, dup := seen[name]
		require.False(t, dup, "duplicate team name %q", name)
		seen[name] = struct{}{}
	}
}

func TestFinalizeRunsOnce(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 2, AssignRandom: true})
	names := NewNames()

	first := teams.Finalize([]Id{NewId(), NewId()}, names, testRng())
	second := teams.Finalize([]Id{NewId(), NewId(), NewId()}, names, testRng())
	require.ElementsMatch(t, first, second)
}

func TestAddPlayerRoundRobinAndIdempotent(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 2, AssignRandom: true})
	names := NewNames()

	players := []Id{NewId(), NewId(), NewId(), NewId()}
	teams.Finalize(players, names, testRng())
	require.Len(t, teams.AllIds(), 2)

	late := NewId()
	a1, ok := teams.AddPlayer(late)
	require.True(t, ok)
	a2, ok := teams.AddPlayer(late)
	require.True(t, ok)
	require.Equal(t, a1.TeamId, a2.TeamId)

	// Successive late joiners rotate across teams.
	b, _ := teams.AddPlayer(NewId())
	require.NotEqual(t, a1.TeamId, b.TeamId)
}

func TestTeamIndexSkipsDeparted(t *testing.T) {
	teams := NewTeams(TeamOptions{Size: 3, AssignRandom: true})
	names := NewNames()

	players := []Id{NewId(), NewId(), NewId()}
	teams.Finalize(players, names, testRng())

	// With everyone alive, indices are 0..n-1 within the team.
	alive := func(Id) bool { return true }
	seen := make(map[int]struct{})
	for _, p := range players {
		idx, ok := teams.TeamIndex(p, alive)
		require.True(t, ok)
		seen[idx] = struct{}{}
	}
	require.Len(t, seen, 3)

	// When a teammate leaves, the players after it shift down.
	var gone Id
	for _, p := range players {
		if idx, _ := teams.TeamIndex(p, alive); idx == 0 {
			gone = p
			break
		}
	}
	aliveWithout := func(id Id) bool { return id != gone }
	for _, p := range players {
		if p == gone {
			continue
		}
		idx, ok := teams.TeamIndex(p, aliveWithout)
		require.True(t, ok)
		require.Less(t, idx, 2)
	}
}
