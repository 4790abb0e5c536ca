package game

import (
	"time"
)

// AnswerChoice is one selectable answer of a multiple choice slide.
type AnswerChoice struct {
	Correct bool        `json:"correct"`
	Content TextOrMedia `json:"content"`
}

// MultipleChoice is a slide where players pick one of several answers.
type MultipleChoice struct {
	Title string `json:"title"`
	Media *Media `json:"media,omitempty"`

	// IntroduceQuestion shows the question alone before answers appear.
	IntroduceQuestion Duration `json:"introduce_question"`
	// TimeLimit is how long the answer window stays open.
	TimeLimit Duration       `json:"time_limit"`
	Points    uint64         `json:"points_awarded"`
	Answers   []AnswerChoice `json:"answers"`
}

func (m *MultipleChoice) validate() error {
	if len(m.Title) > maxTitleLength {
		return errTitleTooLong
	}
	if err := m.Media.validate(); err != nil {
		return err
	}
	if m.IntroduceQuestion < 0 || m.IntroduceQuestion > maxIntroduceQuestion {
		return errBadIntroduce
	}
	if m.TimeLimit < minTimeLimit || m.TimeLimit > maxTimeLimit {
		return errBadTimeLimit
	}
	if len(m.Answers) > maxMCAnswers {
		return errBadAnswerCount
	}
	for _, a := range m.Answers {
		if err := a.Content.validate(); err != nil {
			return err
		}
	}
	return nil
}

type mcAnswer struct {
	index int
	at    time.Time
}

type mcState struct {
	state         SlideState
	questionStart time.Time
	answerStart   time.Time
	answers       map[Id]mcAnswer
}

// MCQuestionAnnouncement introduces the question before answers appear.
type MCQuestionAnnouncement struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
	Question string `json:"question"`
	Media    *Media `json:"media,omitempty"`
	Duration int64  `json:"duration"`
}

// MCAnswersAnnouncement opens the answer window. Answers may be hidden per
// recipient in team games.
type MCAnswersAnnouncement struct {
	Type     string           `json:"type"`
	Index    int              `json:"index"`
	Count    int              `json:"count"`
	Duration int64            `json:"duration"`
	Answers  []PossiblyHidden `json:"answers"`
}

// MCAnswersCount tells hosts how many players have answered.
type MCAnswersCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// MCAnswerResult pairs an answer with whether it was correct and how many
// picked it.
type MCAnswerResult struct {
	Correct bool `json:"correct"`
	Count   int  `json:"count"`
}

// MCAnswersResults reveals the answers and the pick distribution.
type MCAnswersResults struct {
	Type    string           `json:"type"`
	Index   int              `json:"index"`
	Count   int              `json:"count"`
	Answers []TextOrMedia    `json:"answers"`
	Results []MCAnswerResult `json:"results"`
}

func (MCQuestionAnnouncement) updateMessage() {}
func (MCAnswersAnnouncement) updateMessage()  {}
func (MCAnswersCount) updateMessage()         {}
func (MCAnswersResults) updateMessage()       {}

func (MCQuestionAnnouncement) syncMessage() {}
func (MCAnswersAnnouncement) syncMessage()  {}
func (MCAnswersResults) syncMessage()       {}

const (
	typeMCQuestionAnnouncement = "multiple_choice.question_announcement"
	typeMCAnswersAnnouncement  = "multiple_choice.answers_announcement"
	typeMCAnswersCount         = "multiple_choice.answers_count"
	typeMCAnswersResults       = "multiple_choice.answers_results"
)

func (m *MultipleChoice) play(ctx *SlideContext, st *mcState) {
	changeState(&st.state, StateUnstarted, StateQuestion)
	st.questionStart = ctx.Clock.Now()
	ctx.Watchers.Announce(MCQuestionAnnouncement{
		Type:     typeMCQuestionAnnouncement,
		Index:    ctx.Index,
		Count:    ctx.Count,
		Question: m.Title,
		Media:    m.Media,
		Duration: millis(m.IntroduceQuestion.D()),
	}, ctx.Find)
	if m.IntroduceQuestion <= 0 {
		if changeState(&st.state, StateQuestion, StateAnswers) {
			m.sendAnswers(ctx, st)
		}
		return
	}
	ctx.Schedule(AlarmMessage{Kind: KindMultipleChoice, Index: ctx.Index, To: StateAnswers}, m.IntroduceQuestion.D())
}

func (m *MultipleChoice) sendAnswers(ctx *SlideContext, st *mcState) {
	st.answerStart = ctx.Clock.Now()
	ctx.Watchers.AnnounceWith(ctx.Find, func(id Id, value Value) UpdateMessage {
		return MCAnswersAnnouncement{
			Type:     typeMCAnswersAnnouncement,
			Index:    ctx.Index,
			Count:    ctx.Count,
			Duration: millis(m.TimeLimit.D()),
			Answers:  m.answersFor(ctx, id, value),
		}
	})
	ctx.Schedule(AlarmMessage{Kind: KindMultipleChoice, Index: ctx.Index, To: StateAnswersResults}, m.TimeLimit.D())
}

// answersFor masks answers per recipient. In individual games everyone sees
// everything. In team games hosts see only masks, while each team member
// sees the stripe of answers matching their position among the currently
// connected teammates, so a team of any size covers the whole set.
func (m *MultipleChoice) answersFor(ctx *SlideContext, id Id, value Value) []PossiblyHidden {
	n := len(m.Answers)
	out := make([]PossiblyHidden, 0, n)
	if ctx.Teams == nil || n == 0 {
		for i := range m.Answers {
			content := m.Answers[i].Content
			out = append(out, PossiblyHidden{Content: &content})
		}
		return out
	}
	if value.Kind != KindPlayer {
		for range m.Answers {
			out = append(out, PossiblyHidden{Hidden: true})
		}
		return out
	}
	alive := livePlayers(ctx)
	isAlive := func(p Id) bool {
		_, ok := alive[p]
		return ok
	}
	mine, placed := ctx.Teams.TeamIndex(id, isAlive)
	members, _ := ctx.Teams.TeamMembers(id)
	if !placed {
		for i := range m.Answers {
			content := m.Answers[i].Content
			out = append(out, PossiblyHidden{Content: &content})
		}
		return out
	}
	stripe := 0
	for _, p := range members {
		if p == id || isAlive(p) {
			stripe++
		}
	}
	if stripe > n {
		stripe = n
	}
	if stripe < 1 {
		stripe = 1
	}
	mine = mine % n
	for i := range m.Answers {
		if i%stripe == mine {
			content := m.Answers[i].Content
			out = append(out, PossiblyHidden{Content: &content})
		} else {
			out = append(out, PossiblyHidden{Hidden: true})
		}
	}
	return out
}

func (m *MultipleChoice) receiveAlarm(ctx *SlideContext, st *mcState, alarm AlarmMessage) {
	switch alarm.To {
	case StateAnswers:
		if changeState(&st.state, StateQuestion, StateAnswers) {
			m.sendAnswers(ctx, st)
		}
	case StateAnswersResults:
		if changeState(&st.state, StateAnswers, StateAnswersResults) {
			m.sendResults(ctx, st)
		}
	}
}

func (m *MultipleChoice) receiveMessage(ctx *SlideContext, st *mcState, id Id, value Value, msg IncomingMessage) bool {
	switch {
	case value.Kind == KindHost && msg.Type == MsgNext:
		switch st.state {
		case StateQuestion:
			if changeState(&st.state, StateQuestion, StateAnswers) {
				m.sendAnswers(ctx, st)
			}
		case StateAnswers:
			if changeState(&st.state, StateAnswers, StateAnswersResults) {
				m.sendResults(ctx, st)
			}
		case StateAnswersResults:
			m.addScores(ctx, st)
			return true
		}
	case value.Kind == KindPlayer && msg.Type == MsgIndexAnswer && msg.Index != nil:
		if st.state != StateAnswers {
			return false
		}
		index := *msg.Index
		if index < 0 || index >= len(m.Answers) {
			return false
		}
		st.answers[id] = mcAnswer{index: index, at: ctx.Clock.Now()}
		m.afterAnswer(ctx, st)
	}
	return false
}

// afterAnswer either closes the window early when every connected player
// has answered, or updates hosts with the running count.
func (m *MultipleChoice) afterAnswer(ctx *SlideContext, st *mcState) {
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
			m.sendResults(ctx, st)
		}
		return
	}
	ctx.Watchers.AnnounceSpecific(KindHost, MCAnswersCount{
		Type:  typeMCAnswersCount,
		Count: answered,
	}, ctx.Find)
}

func (m *MultipleChoice) results(st *mcState) []MCAnswerResult {
	results := make([]MCAnswerResult, len(m.Answers))
	for i, a := range m.Answers {
		results[i].Correct = a.Correct
	}
	for _, ans := range st.answers {
		results[ans.index].Count++
	}
	return results
}

func (m *MultipleChoice) resultsMessage(ctx *SlideContext, st *mcState) MCAnswersResults {
	contents := make([]TextOrMedia, len(m.Answers))
	for i, a := range m.Answers {
		contents[i] = a.Content
	}
	return MCAnswersResults{
		Type:    typeMCAnswersResults,
		Index:   ctx.Index,
		Count:   ctx.Count,
		Answers: contents,
		Results: m.results(st),
	}
}

func (m *MultipleChoice) sendResults(ctx *SlideContext, st *mcState) {
	ctx.Watchers.Announce(m.resultsMessage(ctx, st), ctx.Find)
}

func (m *MultipleChoice) addScores(ctx *SlideContext, st *mcState) {
	raw := make([]ScoreEntry, 0, len(st.answers))
	for id, ans := range st.answers {
		points := uint64(0)
		if m.Answers[ans.index].Correct {
			points = calculatePoints(m.TimeLimit.D(), ans.at.Sub(st.answerStart), m.Points)
		}
		raw = append(raw, ScoreEntry{Id: id, Points: points})
	}
	ctx.Leaderboard.AddScores(aggregateScores(raw, ctx.TeamOf, scoreRecipients(ctx)))
}

func (m *MultipleChoice) stateMessage(ctx *SlideContext, st *mcState, id Id, value Value) SyncMessage {
	switch st.state {
	case StateUnstarted, StateQuestion:
		return MCQuestionAnnouncement{
			Type:     typeMCQuestionAnnouncement,
			Index:    ctx.Index,
			Count:    ctx.Count,
			Question: m.Title,
			Media:    m.Media,
			Duration: remaining(ctx.Clock, st.questionStart, m.IntroduceQuestion.D()),
		}
	case StateAnswers:
		return MCAnswersAnnouncement{
			Type:     typeMCAnswersAnnouncement,
			Index:    ctx.Index,
			Count:    ctx.Count,
			Duration: remaining(ctx.Clock, st.answerStart, m.TimeLimit.D()),
			Answers:  m.answersFor(ctx, id, value),
		}
	default:
		return m.resultsMessage(ctx, st)
	}
}

// remaining clamps the unexpired part of a window to zero.
func remaining(clock Clock, start time.Time, limit time.Duration) int64 {
	left := limit - clock.Now().Sub(start)
	if left < 0 {
		left = 0
	}
	return millis(left)
}
