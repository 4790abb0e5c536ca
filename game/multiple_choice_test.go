package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculatePoints(t *testing.T) {
	require.Equal(t, uint64(1000), calculatePoints(20*time.Second, 0, 1000))
	require.Equal(t, uint64(750), calculatePoints(20*time.Second, 10*time.Second, 1000))
	require.Equal(t, uint64(500), calculatePoints(20*time.Second, 20*time.Second, 1000))

	// A clock anomaly never penalizes the player.
	require.Equal(t, uint64(1000), calculatePoints(20*time.Second, -5*time.Second, 1000))
}

func TestMultipleChoiceFullRound(t *testing.T) {
	h := newHarness(t, mcQuiz(5*time.Second, 20*time.Second), Options{})
	alice, aliceTunnel := h.join("alice")
	bob, bobTunnel := h.join("bob")

	h.hostNext()

	q, ok := lastOfType[MCQuestionAnnouncement](aliceTunnel)
	require.True(t, ok)
	require.Equal(t, "What is the capital of France?", q.Question)
	require.Equal(t, int64(5000), q.Duration)

	h.fire(5 * time.Second)

	ann, ok := lastOfType[MCAnswersAnnouncement](aliceTunnel)
	require.True(t, ok)
	require.Equal(t, int64(20000), ann.Duration)
	require.Len(t, ann.Answers, 3)
	for _, a := range ann.Answers {
		require.False(t, a.Hidden)
		require.NotNil(t, a.Content)
	}

	h.clock.Advance(10 * time.Second)
	h.answerIndex(alice, 1)

	count, ok := lastOfType[MCAnswersCount](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, count.Count)
	_, playerSawCount := lastOfType[MCAnswersCount](aliceTunnel)
	require.False(t, playerSawCount, "answer counts go to hosts only")

	// The last player answering closes the window early.
	h.answerIndex(bob, 0)

	results, ok := lastOfType[MCAnswersResults](bobTunnel)
	require.True(t, ok)
	require.Equal(t, []MCAnswerResult{
		{Correct: false, Count: 1},
		{Correct: true, Count: 1},
		{Correct: false, Count: 0},
	}, results.Results)

	h.hostNext()

	board, ok := lastOfType[LeaderboardMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 2, board.Current.ExactCount)
	require.Equal(t, uint64(750), board.Current.Items[0].Points)

	score, ok := lastOfType[ScoreUpdateMessage](aliceTunnel)
	require.True(t, ok)
	require.NotNil(t, score.Score)
	require.Equal(t, uint64(750), score.Score.Points)
	require.Equal(t, 0, score.Score.Position)

	h.hostNext()

	summary, ok := lastOfType[SummaryMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 2, summary.PlayerCount)
	require.Equal(t, []SlideStat{{Correct: 1, Wrong: 1}}, summary.Stats)

	playerSummary, ok := lastOfType[PlayerSummaryMessage](aliceTunnel)
	require.True(t, ok)
	require.Equal(t, []uint64{750}, playerSummary.Points)
}

func TestMultipleChoiceZeroIntroduceOpensAnswersImmediately(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{})
	_, tunnel := h.join("alice")

	h.hostNext()

	_, ok := lastOfType[MCQuestionAnnouncement](tunnel)
	require.True(t, ok, "question announcement precedes answers even with no delay")
	_, ok = lastOfType[MCAnswersAnnouncement](tunnel)
	require.True(t, ok)
}

func TestMultipleChoiceIgnoresInvalidAnswers(t *testing.T) {
	h := newHarness(t, mcQuiz(5*time.Second, 20*time.Second), Options{})
	alice, tunnel := h.join("alice")
	// A second player keeps the window from closing early.
	h.join("bob")

	h.hostNext()

	// Answers are not open yet.
	h.answerIndex(alice, 1)
	_, got := lastOfType[MCAnswersResults](tunnel)
	require.False(t, got)

	h.fire(5 * time.Second)

	// Out of range index is dropped, so the window stays open.
	h.answerIndex(alice, 7)
	_, got = lastOfType[MCAnswersResults](tunnel)
	require.False(t, got)

	// A resubmission overwrites the earlier pick.
	h.answerIndex(alice, 0)
	h.answerIndex(alice, 1)

	h.hostNext()

	results, ok := lastOfType[MCAnswersResults](tunnel)
	require.True(t, ok)
	require.Equal(t, 1, results.Results[1].Count)
	require.Equal(t, 0, results.Results[0].Count)
}

func TestMultipleChoiceDuplicateAlarmAbsorbed(t *testing.T) {
	h := newHarness(t, mcQuiz(5*time.Second, 20*time.Second), Options{})
	_, tunnel := h.join("alice")

	h.hostNext()
	h.fire(5 * time.Second)

	before := len(tunnel.Updates())
	h.game.ReceiveAlarm(AlarmMessage{Kind: KindMultipleChoice, Index: 0, To: StateAnswers})
	require.Len(t, tunnel.Updates(), before, "late duplicate alarm must be a no-op")
}

func TestMultipleChoiceHostSkipsPhases(t *testing.T) {
	h := newHarness(t, mcQuiz(30*time.Second, 20*time.Second), Options{})
	_, tunnel := h.join("alice")

	h.hostNext()
	h.hostNext()

	_, ok := lastOfType[MCAnswersAnnouncement](tunnel)
	require.True(t, ok, "host skip must open answers without waiting")

	h.hostNext()
	_, ok = lastOfType[MCAnswersResults](tunnel)
	require.True(t, ok)
}

func TestMultipleChoiceTeamVisibility(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{
		Teams: &TeamOptions{Size: 2, AssignRandom: true},
	})
	_, aliceTunnel := h.join("alice")
	_, bobTunnel := h.join("bob")

	h.hostNext()
	h.hostNext()

	hostAnn, ok := lastOfType[MCAnswersAnnouncement](h.hostTunnel)
	require.True(t, ok)
	for _, a := range hostAnn.Answers {
		require.True(t, a.Hidden, "hosts see no answer contents in team games")
	}

	visible := func(tunnel *fakeTunnel) []int {
		ann, ok := lastOfType[MCAnswersAnnouncement](tunnel)
		require.True(t, ok)
		var out []int
		for i, a := range ann.Answers {
			if !a.Hidden {
				require.NotNil(t, a.Content)
				out = append(out, i)
			}
		}
		return out
	}

	aliceSees := visible(aliceTunnel)
	bobSees := visible(bobTunnel)

	// Between them the two teammates cover all three answers with no
	// overlap.
	union := make(map[int]struct{})
	for _, i := range aliceSees {
		union[i] = struct{}{}
	}
	for _, i := range bobSees {
		_, dup := union[i]
		require.False(t, dup)
		union[i] = struct{}{}
	}
	require.Len(t, union, 3)
}

func TestMultipleChoiceUnevenTeamVisibility(t *testing.T) {
	h := newHarness(t, mcQuiz(0, 20*time.Second), Options{
		Teams: &TeamOptions{Size: 2, AssignRandom: true},
	})
	tunnels := make(map[Id]*fakeTunnel)
	for _, name := range []string{"alice", "bob", "carol"} {
		id, tunnel := h.join(name)
		tunnels[id] = tunnel
	}

	h.hostNext()
	h.hostNext()

	// Three players at team size two form one pair and one singleton. The
	// stripes follow actual team composition, so nobody is left with an
	// answer no teammate can read.
	for id, tunnel := range tunnels {
		members, ok := h.game.teams.TeamMembers(id)
		require.True(t, ok)

		ann, ok := lastOfType[MCAnswersAnnouncement](tunnel)
		require.True(t, ok)
		visible := 0
		for _, a := range ann.Answers {
			if !a.Hidden {
				require.NotNil(t, a.Content)
				visible++
			}
		}
		if len(members) == 1 {
			require.Equal(t, len(ann.Answers), visible, "a lone teammate sees every answer")
		} else {
			require.NotZero(t, visible)
			require.Less(t, visible, len(ann.Answers))
		}
	}
}

func TestMultipleChoiceNoAnswersScoresNobody(t *testing.T) {
	config := FuizConfig{
		Title: "Open ended",
		Slides: []Slide{{
			Kind: KindMultipleChoice,
			MultipleChoice: &MultipleChoice{
				Title:     "No options here",
				TimeLimit: Duration(20 * time.Second),
				Points:    1000,
			},
		}},
	}
	require.NoError(t, config.Validate())

	h := newHarness(t, config, Options{})
	alice, _ := h.join("alice")

	h.hostNext()
	h.answerIndex(alice, 0)

	h.hostNext()
	results, ok := lastOfType[MCAnswersResults](h.hostTunnel)
	require.True(t, ok)
	require.Empty(t, results.Results)

	h.hostNext()
	board, ok := lastOfType[LeaderboardMessage](h.hostTunnel)
	require.True(t, ok)
	require.Equal(t, 1, board.Current.ExactCount)
	require.Equal(t, uint64(0), board.Current.Items[0].Points)
}

func TestAggregateScoresTeamMinimum(t *testing.T) {
	team := NewId()
	a, b := NewId(), NewId()
	teamOf := func(id Id) Id { return team }

	out := aggregateScores([]ScoreEntry{
		{Id: a, Points: 800},
		{Id: b, Points: 600},
	}, teamOf, []Id{team})

	require.Equal(t, []ScoreEntry{{Id: team, Points: 600}}, out)
}

func TestAggregateScoresZeroFill(t *testing.T) {
	a, b := NewId(), NewId()
	self := func(id Id) Id { return id }

	out := aggregateScores([]ScoreEntry{{Id: a, Points: 500}}, self, []Id{a, b})
	require.Len(t, out, 2)
	require.Equal(t, ScoreEntry{Id: a, Points: 500}, out[0])
	require.Equal(t, ScoreEntry{Id: b, Points: 0}, out[1])
}
