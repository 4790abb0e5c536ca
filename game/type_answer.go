package game

import (
	"sort"
	"strings"
	"time"
)

// TypeAnswer is a slide where players type a free-form answer that is
// matched against a list of accepted answers.
type TypeAnswer struct {
	Title string `json:"title"`
	Media *Media `json:"media,omitempty"`

	IntroduceQuestion Duration `json:"introduce_question"`
	TimeLimit         Duration `json:"time_limit"`
	Points            uint64   `json:"points_awarded"`
	Answers           []string `json:"answers"`
	CaseSensitive     bool     `json:"case_sensitive"`
}

func (t *TypeAnswer) validate() error {
	if len(t.Title) > maxTitleLength {
		return errTitleTooLong
	}
	if err := t.Media.validate(); err != nil {
		return err
	}
	if t.IntroduceQuestion < 0 || t.IntroduceQuestion > maxIntroduceQuestion {
		return errBadIntroduce
	}
	if t.TimeLimit < minTimeLimit || t.TimeLimit > maxTimeLimit {
		return errBadTimeLimit
	}
	if len(t.Answers) == 0 {
		return errBadAnswerCount
	}
	for _, a := range t.Answers {
		if len(a) > maxAnswerText {
			return errAnswerTooLong
		}
	}
	return nil
}

// clean normalizes an answer for comparison.
func (t *TypeAnswer) clean(s string) string {
	s = strings.TrimSpace(s)
	if !t.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

type taAnswer struct {
	text string
	at   time.Time
}

type taState struct {
	state         SlideState
	questionStart time.Time
	answerStart   time.Time
	answers       map[Id]taAnswer
}

// TAQuestionAnnouncement shows the question. AcceptAnswers opens the input
// field on the client.
type TAQuestionAnnouncement struct {
	Type          string `json:"type"`
	Index         int    `json:"index"`
	Count         int    `json:"count"`
	Question      string `json:"question"`
	Media         *Media `json:"media,omitempty"`
	Duration      int64  `json:"duration"`
	AcceptAnswers bool   `json:"accept_answers"`
}

// TAAnswersCount tells hosts how many players have answered.
type TAAnswersCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TAAnswerCount is one distinct submitted answer and its frequency.
type TAAnswerCount struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// TAAnswersResults reveals the accepted answers and what was submitted.
type TAAnswersResults struct {
	Type          string          `json:"type"`
	Index         int             `json:"index"`
	Count         int             `json:"count"`
	Results       []TAAnswerCount `json:"results"`
	Accepted      []string        `json:"accepted"`
	CaseSensitive bool            `json:"case_sensitive"`
}

func (TAQuestionAnnouncement) updateMessage() {}
func (TAAnswersCount) updateMessage()         {}
func (TAAnswersResults) updateMessage()       {}

func (TAQuestionAnnouncement) syncMessage() {}
func (TAAnswersResults) syncMessage()       {}

const (
	typeTAQuestionAnnouncement = "type_answer.question_announcement"
	typeTAAnswersCount         = "type_answer.answers_count"
	typeTAAnswersResults       = "type_answer.answers_results"
)

func (t *TypeAnswer) play(ctx *SlideContext, st *taState) {
	if t.IntroduceQuestion <= 0 {
		// No separate question phase; answers open immediately.
		changeState(&st.state, StateUnstarted, StateQuestion)
		if changeState(&st.state, StateQuestion, StateAnswers) {
			st.answerStart = ctx.Clock.Now()
			ctx.Watchers.Announce(t.announcement(ctx, true, millis(t.TimeLimit.D())), ctx.Find)
			ctx.Schedule(AlarmMessage{Kind: KindTypeAnswer, Index: ctx.Index, To: StateAnswersResults}, t.TimeLimit.D())
		}
		return
	}
	changeState(&st.state, StateUnstarted, StateQuestion)
	st.questionStart = ctx.Clock.Now()
	ctx.Watchers.Announce(t.announcement(ctx, false, millis(t.IntroduceQuestion.D())), ctx.Find)
	ctx.Schedule(AlarmMessage{Kind: KindTypeAnswer, Index: ctx.Index, To: StateAnswers}, t.IntroduceQuestion.D())
}

func (t *TypeAnswer) announcement(ctx *SlideContext, accept bool, duration int64) TAQuestionAnnouncement {
	return TAQuestionAnnouncement{
		Type:          typeTAQuestionAnnouncement,
		Index:         ctx.Index,
		Count:         ctx.Count,
		Question:      t.Title,
		Media:         t.Media,
		Duration:      duration,
		AcceptAnswers: accept,
	}
}

func (t *TypeAnswer) sendAnswers(ctx *SlideContext, st *taState) {
	st.answerStart = ctx.Clock.Now()
	ctx.Watchers.Announce(t.announcement(ctx, true, millis(t.TimeLimit.D())), ctx.Find)
	ctx.Schedule(AlarmMessage{Kind: KindTypeAnswer, Index: ctx.Index, To: StateAnswersResults}, t.TimeLimit.D())
}

func (t *TypeAnswer) receiveAlarm(ctx *SlideContext, st *taState, alarm AlarmMessage) {
	switch alarm.To {
	case StateAnswers:
		if changeState(&st.state, StateQuestion, StateAnswers) {
			t.sendAnswers(ctx, st)
		}
	case StateAnswersResults:
		if changeState(&st.state, StateAnswers, StateAnswersResults) {
			t.sendResults(ctx, st)
		}
	}
}

func (t *TypeAnswer) receiveMessage(ctx *SlideContext, st *taState, id Id, value Value, msg IncomingMessage) bool {
	switch {
	case value.Kind == KindHost && msg.Type == MsgNext:
		switch st.state {
		case StateQuestion:
			if changeState(&st.state, StateQuestion, StateAnswers) {
				t.sendAnswers(ctx, st)
			}
		case StateAnswers:
			if changeState(&st.state, StateAnswers, StateAnswersResults) {
				t.sendResults(ctx, st)
			}
		case StateAnswersResults:
			t.addScores(ctx, st)
			return true
		}
	case value.Kind == KindPlayer && msg.Type == MsgStringAnswer && msg.Text != nil:
		if st.state != StateAnswers {
			return false
		}
		st.answers[id] = taAnswer{text: *msg.Text, at: ctx.Clock.Now()}
		t.afterAnswer(ctx, st)
	}
	return false
}

func (t *TypeAnswer) afterAnswer(ctx *SlideContext, st *taState) {
	live := livePlayers(ctx)
	answered := 0
	all := true
	for id := range live {
		if _, ok := st.answers[id]; ok {
			answered++
		} else {
			all = false
		}
	}
	if all {
		if changeState(&st.state, StateAnswers, StateAnswersResults) {
			t.sendResults(ctx, st)
		}
		return
	}
	ctx.Watchers.AnnounceSpecific(KindHost, TAAnswersCount{
		Type:  typeTAAnswersCount,
		Count: answered,
	}, ctx.Find)
}

func (t *TypeAnswer) acceptedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.Answers))
	for _, a := range t.Answers {
		set[t.clean(a)] = struct{}{}
	}
	return set
}

func (t *TypeAnswer) resultsMessage(ctx *SlideContext, st *taState) TAAnswersResults {
	counts := make(map[string]int, len(st.answers))
	for _, ans := range st.answers {
		counts[t.clean(ans.text)]++
	}
	results := make([]TAAnswerCount, 0, len(counts))
	for text, count := range counts {
		results = append(results, TAAnswerCount{Text: text, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Text < results[j].Text
	})

	accepted := make([]string, len(t.Answers))
	for i, a := range t.Answers {
		accepted[i] = t.clean(a)
	}
	return TAAnswersResults{
		Type:          typeTAAnswersResults,
		Index:         ctx.Index,
		Count:         ctx.Count,
		Results:       results,
		Accepted:      accepted,
		CaseSensitive: t.CaseSensitive,
	}
}

func (t *TypeAnswer) sendResults(ctx *SlideContext, st *taState) {
	ctx.Watchers.Announce(t.resultsMessage(ctx, st), ctx.Find)
}

func (t *TypeAnswer) addScores(ctx *SlideContext, st *taState) {
	accepted := t.acceptedSet()
	raw := make([]ScoreEntry, 0, len(st.answers))
	for id, ans := range st.answers {
		points := uint64(0)
		if _, ok := accepted[t.clean(ans.text)]; ok {
			points = calculatePoints(t.TimeLimit.D(), ans.at.Sub(st.answerStart), t.Points)
		}
		raw = append(raw, ScoreEntry{Id: id, Points: points})
	}
	ctx.Leaderboard.AddScores(aggregateScores(raw, ctx.TeamOf, scoreRecipients(ctx)))
}

func (t *TypeAnswer) stateMessage(ctx *SlideContext, st *taState, id Id, value Value) SyncMessage {
	switch st.state {
	case StateUnstarted, StateQuestion:
		return t.announcement(ctx, false, remaining(ctx.Clock, st.questionStart, t.IntroduceQuestion.D()))
	case StateAnswers:
		return t.announcement(ctx, true, remaining(ctx.Clock, st.answerStart, t.TimeLimit.D()))
	default:
		return t.resultsMessage(ctx, st)
	}
}
