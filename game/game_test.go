package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockHoldsNewWatchers(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	alice, _ := h.join("alice")

	locked := true
	h.game.ReceiveMessage(h.host, IncomingMessage{Type: MsgLock, Lock: &locked})

	// A joiner is registered but held without a name prompt.
	id := NewId()
	tunnel := &fakeTunnel{}
	h.tunnels.Set(id, tunnel)
	require.NoError(t, h.game.AddWatcher(id))
	_, prompted := lastOfType[NameChooseMessage](tunnel)
	require.False(t, prompted)

	// Held watchers stay inert: name requests are ignored while locked.
	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgNameRequest, Name: "carol"})
	_, named := lastOfType[NameAssignMessage](tunnel)
	require.False(t, named)

	// Known watchers still reconnect while locked.
	require.True(t, h.game.Reconnect(alice))

	unlocked := false
	h.game.ReceiveMessage(h.host, IncomingMessage{Type: MsgLock, Lock: &unlocked})

	// The withheld prompt arrives on the next connection after unlock.
	tunnel.Reset()
	require.True(t, h.game.Reconnect(id))
	_, prompted = lastOfType[NameChooseMessage](tunnel)
	require.True(t, prompted)

	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgNameRequest, Name: "carol"})
	assign, ok := lastOfType[NameAssignMessage](tunnel)
	require.True(t, ok)
	require.Equal(t, "carol", assign.Name)
}

func TestReconnectReplaysNameAssign(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	bob, tunnel := h.join("bob")

	tunnel.Reset()
	require.True(t, h.game.Reconnect(bob))

	assign, ok := lastOfType[NameAssignMessage](tunnel)
	require.True(t, ok)
	require.Equal(t, "bob", assign.Name)
	require.NotEmpty(t, tunnel.States())

	// No duplicate registry entry for the replayed name.
	owner, ok := h.game.names.GetId("bob")
	require.True(t, ok)
	require.Equal(t, bob, owner)
}

func TestReconnectReplaysSlideState(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	alice, aliceTunnel := h.join("alice")
	h.join("bob")

	h.hostNext()
	h.clock.Advance(5 * time.Second)

	aliceTunnel.Reset()
	require.True(t, h.game.Reconnect(alice))

	states := aliceTunnel.States()
	require.NotEmpty(t, states)
	ann, ok := states[len(states)-1].(MCAnswersAnnouncement)
	require.True(t, ok)
	require.Equal(t, int64(15000), ann.Duration, "remaining time, not the full window")

	updates := aliceTunnel.Updates()
	require.NotEmpty(t, updates)
	meta, ok := updates[0].(MetainfoMessage)
	require.True(t, ok)
	require.False(t, meta.Locked)
}

func TestReconnectUnknownIdFails(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	require.False(t, h.game.Reconnect(NewId()))
}

func TestStaleAlarmForOtherSlideDropped(t *testing.T) {
	config := mcQuiz(0, 20*time.Second)
	config.Slides = append(config.Slides, config.Slides[0])
	h := newHarness(t, config, Options{NoLeaderboard: true})
	alice, tunnel := h.join("alice")

	h.hostNext()
	h.answerIndex(alice, 1)
	h.hostNext()

	// Now on slide 1; a leftover alarm for slide 0 must not fire.
	before := len(tunnel.Updates())
	h.game.ReceiveAlarm(AlarmMessage{Kind: KindMultipleChoice, Index: 0, To: StateAnswersResults})
	require.Len(t, tunnel.Updates(), before)
}

func TestNoLeaderboardSkipsStandings(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{NoLeaderboard: true})
	alice, aliceTunnel := h.join("alice")

	h.hostNext()
	h.answerIndex(alice, 1)
	h.hostNext()

	_, sawBoard := lastOfType[LeaderboardMessage](h.hostTunnel)
	require.False(t, sawBoard)
	require.Equal(t, PhaseSummary, h.game.Phase())

	// Real point values are masked in the final summary.
	playerSummary, ok := lastOfType[PlayerSummaryMessage](aliceTunnel)
	require.True(t, ok)
	require.Equal(t, []uint64{1}, playerSummary.Points)
}

func TestZeroSlidesSummarizesImmediately(t *testing.T) {
	h := newHarness(t, FuizConfig{Title: "Empty"}, Options{})
	h.join("alice")

	h.hostNext()
	require.Equal(t, PhaseSummary, h.game.Phase())

	summary, ok := lastOfType[SummaryMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, summary.PlayerCount)
	require.Empty(t, summary.Stats)
}

func TestDoneGameSeversConnectionsAndIgnoresMessages(t *testing.T) {
	h := newHarness(t, FuizConfig{Title: "Empty"}, Options{})
	alice, aliceTunnel := h.join("alice")

	h.hostNext()
	h.hostNext()

	require.Equal(t, PhaseDone, h.game.Phase())
	require.True(t, h.game.Done())
	require.True(t, aliceTunnel.Closed())

	aliceTunnel.Reset()
	h.answerIndex(alice, 0)
	require.Empty(t, aliceTunnel.Updates())
	require.False(t, h.game.Reconnect(alice))
}

func TestRandomNamesAssignedOnJoin(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{RandomNames: true})
	_, tunnel := h.join("")

	assign, ok := lastOfType[NameAssignMessage](tunnel)
	require.True(t, ok)
	require.NotEmpty(t, assign.Name)

	_, prompted := lastOfType[NameChooseMessage](tunnel)
	require.False(t, prompted)
}

func TestWaitingScreenRoster(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	h.join("alice")
	h.join("bob")

	roster, ok := lastOfType[WaitingScreenMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 2, roster.Players.ExactCount)
	require.ElementsMatch(t, []string{"alice", "bob"}, roster.Players.Items)
}

func TestNameErrorsReachWatcher(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	h.join("alice")

	id := NewId()
	tunnel := &fakeTunnel{}
	h.tunnels.Set(id, tunnel)
	require.NoError(t, h.game.AddWatcher(id))
	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgNameRequest, Name: "alice"})

	nameErr, ok := lastOfType[NameErrorMessage](tunnel)
	require.True(t, ok)
	require.Equal(t, ErrNameUsed.Error(), nameErr.Error)
}

func TestRoleGatingDropsMismatchedFrames(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	alice, _ := h.join("alice")
	h.join("bob")

	// A player cannot advance the game.
	h.game.ReceiveMessage(alice, IncomingMessage{Type: MsgNext})
	require.Equal(t, PhaseWaiting, h.game.Phase())

	// The host cannot submit answers.
	h.hostNext()
	index := 1
	h.game.ReceiveMessage(h.host, IncomingMessage{Type: MsgIndexAnswer, Index: &index})

	results, found := lastOfType[MCAnswersResults](h.hostTunnel)
	require.False(t, found && results.Results[1].Count > 0)
}

func TestHostIndexJumpsToSlide(t *testing.T) {
	config := mcQuiz(0, 20*time.Second)
	second := config.Slides[0]
	config.Slides = append(config.Slides, second)
	h := newHarness(t, config, Options{})
	h.join("alice")

	h.hostNext()

	jump := 5
	h.game.ReceiveMessage(h.host, IncomingMessage{Type: MsgIndex, Index: &jump})

	// Clamped to the last slide.
	ann, ok := lastOfType[MCQuestionAnnouncement](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, ann.Index)
}

func TestTeamFlow(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{
		Teams: &TeamOptions{Size: 2, AssignRandom: true},
	})
	alice, aliceTunnel := h.join("alice")
	bob, _ := h.join("bob")

	h.hostNext()

	display, ok := lastOfType[TeamDisplayMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, display.Teams.ExactCount)

	find, ok := lastOfType[FindTeamMessage](aliceTunnel)
	require.True(t, ok)
	require.Equal(t, display.Teams.Items[0], find.Team)

	h.hostNext()

	// Alice answers right away, bob after ten seconds; the team is
	// credited the lower of the two awards.
	h.answerIndex(alice, 1)
	h.clock.Advance(10 * time.Second)
	h.answerIndex(bob, 1)
	h.hostNext()

	board, ok := lastOfType[LeaderboardMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, board.Current.ExactCount, "teams score as one entry")
	require.Equal(t, uint64(750), board.Current.Items[0].Points)
}
