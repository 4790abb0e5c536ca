package game

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
)

// GamePhase is the top-level state of a game.
type GamePhase int

const (
	PhaseWaiting GamePhase = iota
	PhaseTeamDisplay
	PhaseSlide
	PhaseLeaderboard
	PhaseSummary
	PhaseDone
)

// ErrGameDone is returned when a new watcher tries to join a finished game.
var ErrGameDone = errors.New("game has ended")

// Game is one live session of a fuiz. All mutation happens under its lock;
// outbound sends go through non-blocking tunnels so holding the lock while
// broadcasting cannot stall.
type Game struct {
	mu sync.Mutex

	config  FuizConfig
	options Options

	clock       Clock
	watchers    *Watchers
	names       *Names
	leaderboard *Leaderboard
	teams       *Teams
	find        TunnelFinder
	schedule    Schedule
	rng         *rand.Rand

	phase      GamePhase
	slideIndex int
	runtime    *SlideRuntime
	locked     bool
	updated    time.Time
}

// NewGame creates a game in the waiting phase.
func NewGame(config FuizConfig, options Options, clock Clock, find TunnelFinder, schedule Schedule) *Game {
	g := &Game{
		config:      config,
		options:     options,
		clock:       clock,
		watchers:    NewWatchers(),
		names:       NewNames(),
		leaderboard: NewLeaderboard(),
		find:        find,
		schedule:    schedule,
		rng:         rand.New(rand.NewSource(clock.Now().UnixNano())),
		phase:       PhaseWaiting,
		updated:     clock.Now(),
	}
	if options.Teams != nil {
		g.teams = NewTeams(*options.Teams)
	}
	return g
}

func (g *Game) touch() {
	g.updated = g.clock.Now()
}

// Updated reports the last time the game saw any activity.
func (g *Game) Updated() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updated
}

// Done reports whether the game has ended.
func (g *Game) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseDone
}

// Phase returns the current top-level phase.
func (g *Game) Phase() GamePhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

func (g *Game) context() *SlideContext {
	return &SlideContext{
		Index:       g.slideIndex,
		Count:       len(g.config.Slides),
		Clock:       g.clock,
		Watchers:    g.watchers,
		Leaderboard: g.leaderboard,
		Find:        g.find,
		Schedule:    g.schedule,
		Teams:       g.teams,
	}
}

// AddHost registers the creating watcher as the game's host.
func (g *Game) AddHost(id Id) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.watchers.Add(id, Value{Kind: KindHost}); err != nil {
		return err
	}
	g.touch()
	g.sendMetainfo(id)
	g.sendStateLocked(id)
	return nil
}

// AddWatcher registers a brand new unassigned watcher. A locked game still
// registers the watcher but holds it without a name prompt until it
// reconnects after an unlock. Finished games reject; known ids should
// reconnect instead.
func (g *Game) AddWatcher(id Id) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseDone {
		return ErrGameDone
	}
	if err := g.watchers.Add(id, Value{Kind: KindUnassigned}); err != nil {
		return err
	}
	g.touch()
	g.sendMetainfo(id)
	if g.locked {
		return nil
	}
	g.promptNameLocked(id)
	return nil
}

// promptNameLocked starts name assignment for an unassigned watcher.
func (g *Game) promptNameLocked(id Id) {
	if g.options.RandomNames {
		g.assignRandomNameLocked(id)
	} else {
		g.watchers.SendMessage(id, NameChooseMessage{Type: TypeNameChoose}, g.find)
	}
}

// Reconnect replays name assignment, metainfo and full state to a
// previously registered watcher. Held watchers of an unlocked lobby get
// their withheld name prompt here.
func (g *Game) Reconnect(id Id) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseDone {
		return false
	}
	value, ok := g.watchers.Get(id)
	if !ok {
		return false
	}
	g.touch()
	g.sendMetainfo(id)
	if name, named := g.names.Get(id); named {
		g.watchers.SendMessage(id, NameAssignMessage{Type: TypeNameAssign, Name: name}, g.find)
	} else if value.Kind == KindUnassigned && !g.locked {
		if g.options.RandomNames {
			// Promotion already sends the state sync.
			g.assignRandomNameLocked(id)
			return true
		}
		g.watchers.SendMessage(id, NameChooseMessage{Type: TypeNameChoose}, g.find)
	}
	g.sendStateLocked(id)
	return true
}

func (g *Game) sendMetainfo(id Id) {
	g.watchers.SendMessage(id, MetainfoMessage{
		Type:        TypeMetainfo,
		ShowAnswers: g.options.ShowAnswers,
		Locked:      g.locked,
	}, g.find)
}

// ReceiveAlarm applies a scheduled timer expiry. Alarms for any slide other
// than the current one are stale and dropped.
func (g *Game) ReceiveAlarm(alarm AlarmMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseSlide || g.runtime == nil || alarm.Index != g.slideIndex {
		return
	}
	g.runtime.ReceiveAlarm(g.context(), alarm)
}

// ReceiveMessage applies one frame from a watcher. Frames from roles that
// may not send them are dropped.
func (g *Game) ReceiveMessage(id Id, msg IncomingMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseDone {
		return
	}
	value, ok := g.watchers.Get(id)
	if !ok {
		return
	}
	g.touch()

	switch value.Kind {
	case KindHost:
		if !msg.IsHost() {
			return
		}
		g.receiveHostMessage(msg)
	case KindUnassigned:
		if !msg.IsUnassigned() {
			return
		}
		// Held watchers of a locked lobby stay inert.
		if g.locked {
			return
		}
		if msg.Type == MsgNameRequest {
			g.requestName(id, msg.Name)
		}
	case KindPlayer:
		if !msg.IsPlayer() {
			return
		}
		g.receivePlayerMessage(id, value, msg)
	}
}

func (g *Game) receiveHostMessage(msg IncomingMessage) {
	switch msg.Type {
	case MsgNext:
		g.hostNext()
	case MsgIndex:
		if msg.Index != nil {
			g.hostIndex(*msg.Index)
		}
	case MsgLock:
		if msg.Lock != nil {
			g.locked = *msg.Lock
			g.watchers.Announce(MetainfoMessage{
				Type:        TypeMetainfo,
				ShowAnswers: g.options.ShowAnswers,
				Locked:      g.locked,
			}, g.find)
		}
	}
}

func (g *Game) hostNext() {
	switch g.phase {
	case PhaseWaiting:
		g.play()
	case PhaseTeamDisplay:
		g.startSlide(0)
	case PhaseSlide:
		// Delegated; a finished slide reports back true.
		g.forwardToSlide()
	case PhaseLeaderboard:
		if g.slideIndex+1 < len(g.config.Slides) {
			g.startSlide(g.slideIndex + 1)
		} else {
			g.summarize()
		}
	case PhaseSummary:
		g.markDoneLocked()
	}
}

func (g *Game) forwardToSlide() {
	hosts := g.watchers.SpecificVec(KindHost, g.find)
	msg := IncomingMessage{Type: MsgNext}
	if len(hosts) > 0 {
		if g.runtime.ReceiveMessage(g.context(), hosts[0].Id, hosts[0].Value, msg) {
			g.finishSlide()
		}
		return
	}
	// No connected host; apply with a synthetic host identity.
	if g.runtime.ReceiveMessage(g.context(), Id{}, Value{Kind: KindHost}, msg) {
		g.finishSlide()
	}
}

// hostIndex jumps to an arbitrary slide, clamped to the configured range.
// It only applies once the quiz has started.
func (g *Game) hostIndex(index int) {
	if g.phase != PhaseSlide && g.phase != PhaseLeaderboard {
		return
	}
	if len(g.config.Slides) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index >= len(g.config.Slides) {
		index = len(g.config.Slides) - 1
	}
	g.startSlide(index)
}

// play starts the quiz: team games first finalize and display teams, then a
// second advance enters the first slide.
func (g *Game) play() {
	if len(g.config.Slides) == 0 {
		g.summarize()
		return
	}
	if g.teams != nil && !g.teams.Finalized() {
		g.finalizeTeams()
		g.phase = PhaseTeamDisplay
		g.broadcastTeamDisplay()
		return
	}
	g.startSlide(0)
}

func (g *Game) finalizeTeams() {
	entries := g.watchers.SpecificVec(KindPlayer, g.find)
	players := make([]Id, len(entries))
	for i, e := range entries {
		players[i] = e.Id
	}
	assignments := g.teams.Finalize(players, g.names, g.rng)
	for _, a := range assignments {
		g.applyAssignment(a)
	}
}

// applyAssignment rewrites a player's value with its team placement and
// tells the player where it landed.
func (g *Game) applyAssignment(a TeamAssignment) {
	value, ok := g.watchers.Get(a.Player)
	if !ok || value.Kind != KindPlayer {
		return
	}
	value.Player.Kind = PlayerTeam
	value.Player.TeamName = a.TeamName
	value.Player.TeamId = a.TeamId
	value.Player.TeamIndex = a.Index
	g.watchers.Update(a.Player, value)
	g.watchers.SendMessage(a.Player, FindTeamMessage{Type: TypeFindTeam, Team: a.TeamName}, g.find)
}

func (g *Game) broadcastTeamDisplay() {
	msg := TeamDisplayMessage{
		Type:  TypeTeamDisplay,
		Teams: truncateList(g.teams.Names(), truncateLimit),
	}
	g.watchers.AnnounceSpecific(KindHost, msg, g.find)
	g.watchers.AnnounceSpecific(KindUnassigned, msg, g.find)
}

func (g *Game) startSlide(index int) {
	g.phase = PhaseSlide
	g.slideIndex = index
	g.runtime = g.config.Slides[index].ToState(g.clock)
	g.runtime.Play(g.context())
}

// finishSlide runs after a slide's scores are recorded: straight to the
// next slide when standings are suppressed, otherwise through the
// leaderboard screen.
func (g *Game) finishSlide() {
	if g.options.NoLeaderboard {
		if g.slideIndex+1 < len(g.config.Slides) {
			g.startSlide(g.slideIndex + 1)
		} else {
			g.summarize()
		}
		return
	}
	g.phase = PhaseLeaderboard
	g.broadcastLeaderboard()
}

func (g *Game) broadcastLeaderboard() {
	current, prior := g.leaderboard.Standings()
	board := LeaderboardMessage{Type: TypeLeaderboard, Current: current, Prior: prior}
	g.watchers.AnnounceWith(g.find, func(id Id, value Value) UpdateMessage {
		if value.Kind != KindPlayer {
			return board
		}
		return ScoreUpdateMessage{Type: TypeScore, Score: g.scoreFor(id, value)}
	})
}

// scoreFor resolves the scoring key for a watcher: team games score by
// team id.
func (g *Game) scoreFor(id Id, value Value) *ScoreMessage {
	key := id
	if team, ok := value.Player.Team(); ok {
		key = team
	}
	if s, ok := g.leaderboard.Score(key); ok {
		return &s
	}
	return nil
}

func (g *Game) summarize() {
	g.phase = PhaseSummary
	stats, mapping := g.leaderboard.Summary(!g.options.NoLeaderboard)
	playerCount := g.watchers.SpecificCount(KindPlayer)
	g.watchers.AnnounceWith(g.find, func(id Id, value Value) UpdateMessage {
		if value.Kind != KindPlayer {
			return SummaryMessage{Type: TypeSummary, PlayerCount: playerCount, Stats: stats}
		}
		key := id
		if team, ok := value.Player.Team(); ok {
			key = team
		}
		return PlayerSummaryMessage{Type: TypePlayerSummary, Points: mapping[key]}
	})
}

// MarkAsDone ends the game and severs every connection.
func (g *Game) MarkAsDone() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markDoneLocked()
}

func (g *Game) markDoneLocked() {
	if g.phase == PhaseDone {
		return
	}
	g.phase = PhaseDone
	for _, e := range g.watchers.Vec(g.find) {
		e.Tunnel.Close()
	}
}

// requestName validates and assigns a display name, promoting the watcher
// to a player on success.
func (g *Game) requestName(id Id, name string) {
	assigned, err := g.names.SetName(id, name)
	if err != nil {
		g.watchers.SendMessage(id, NameErrorMessage{Type: TypeNameError, Error: err.Error()}, g.find)
		return
	}
	g.promotePlayer(id, assigned)
}

// assignRandomNameLocked draws generated names until one sticks.
func (g *Game) assignRandomNameLocked(id Id) {
	for {
		candidate := petname.Generate(2, " ")
		assigned, err := g.names.SetName(id, candidate)
		if err == nil {
			g.promotePlayer(id, assigned)
			return
		}
		if err != ErrNameUsed {
			return
		}
	}
}

func (g *Game) promotePlayer(id Id, name string) {
	value := Value{Kind: KindPlayer, Player: PlayerValue{Kind: PlayerIndividual, Name: name}}
	g.watchers.Update(id, value)
	g.watchers.SendMessage(id, NameAssignMessage{Type: TypeNameAssign, Name: name}, g.find)

	// Late joiners in a team game slot into an existing team right away.
	if g.teams != nil && g.teams.Finalized() {
		if a, ok := g.teams.AddPlayer(id); ok {
			g.applyAssignment(a)
		}
	} else if g.teams != nil && g.options.Teams != nil && !g.options.Teams.AssignRandom {
		g.watchers.SendMessage(id, ChooseTeammatesMessage{
			Type:         TypeChooseTeammates,
			MaxSelection: g.options.Teams.Size,
			Available:    g.playerNames(),
		}, g.find)
	}
	g.broadcastWaitingScreen()
	g.sendStateLocked(id)
}

func (g *Game) playerNames() []string {
	entries := g.watchers.SpecificVec(KindPlayer, g.find)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Value.Player.DisplayName())
	}
	return names
}

func (g *Game) broadcastWaitingScreen() {
	if g.phase != PhaseWaiting {
		return
	}
	msg := WaitingScreenMessage{
		Type:    TypeWaitingScreen,
		Players: truncateList(g.playerNames(), truncateLimit),
	}
	g.watchers.AnnounceSpecific(KindHost, msg, g.find)
	g.watchers.AnnounceSpecific(KindUnassigned, msg, g.find)
}

func (g *Game) receivePlayerMessage(id Id, value Value, msg IncomingMessage) {
	switch msg.Type {
	case MsgChooseTeammates:
		if g.teams == nil || g.phase != PhaseWaiting {
			return
		}
		prefs := make([]Id, 0, len(msg.List))
		for _, name := range msg.List {
			if pid, ok := g.names.GetId(name); ok {
				prefs = append(prefs, pid)
			}
		}
		g.teams.SetPreferences(id, prefs)
	default:
		if g.phase != PhaseSlide || g.runtime == nil {
			return
		}
		if g.runtime.ReceiveMessage(g.context(), id, value, msg) {
			g.finishSlide()
		}
	}
}

// sendStateLocked replays the phase-appropriate full state to one watcher.
func (g *Game) sendStateLocked(id Id) {
	value, ok := g.watchers.Get(id)
	if !ok {
		return
	}
	switch g.phase {
	case PhaseWaiting:
		g.watchers.SendState(id, WaitingScreenMessage{
			Type:    TypeWaitingScreen,
			Players: truncateList(g.playerNames(), truncateLimit),
		}, g.find)
	case PhaseTeamDisplay:
		if value.Kind == KindPlayer {
			g.watchers.SendState(id, FindTeamMessage{
				Type: TypeFindTeam,
				Team: value.Player.TeamName,
			}, g.find)
		} else {
			g.watchers.SendState(id, TeamDisplayMessage{
				Type:  TypeTeamDisplay,
				Teams: truncateList(g.teams.Names(), truncateLimit),
			}, g.find)
		}
	case PhaseSlide:
		if state := g.runtime.StateMessage(g.context(), id, value); state != nil {
			g.watchers.SendState(id, state, g.find)
		}
	case PhaseLeaderboard:
		if value.Kind == KindPlayer {
			g.watchers.SendState(id, ScoreSync{
				Type:  TypeScore,
				Index: g.slideIndex,
				Count: len(g.config.Slides),
				Score: g.scoreFor(id, value),
			}, g.find)
		} else {
			current, prior := g.leaderboard.Standings()
			g.watchers.SendState(id, LeaderboardSync{
				Type:    TypeLeaderboard,
				Index:   g.slideIndex,
				Count:   len(g.config.Slides),
				Current: current,
				Prior:   prior,
			}, g.find)
		}
	case PhaseSummary:
		stats, mapping := g.leaderboard.Summary(!g.options.NoLeaderboard)
		if value.Kind == KindPlayer {
			key := id
			if team, ok := value.Player.Team(); ok {
				key = team
			}
			g.watchers.SendState(id, PlayerSummaryMessage{
				Type:   TypePlayerSummary,
				Points: mapping[key],
			}, g.find)
		} else {
			g.watchers.SendState(id, SummaryMessage{
				Type:        TypeSummary,
				PlayerCount: g.watchers.SpecificCount(KindPlayer),
				Stats:       stats,
			}, g.find)
		}
	}
}
