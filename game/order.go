package game

import (
	"math/rand"
	"time"
)

// AxisLabels optionally labels the two ends of an ordering axis.
type AxisLabels struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Order is a slide where players arrange items into their correct order.
// Answers holds the items in the correct order; players receive them
// shuffled.
type Order struct {
	Title string `json:"title"`
	Media *Media `json:"media,omitempty"`

	IntroduceQuestion Duration   `json:"introduce_question"`
	TimeLimit         Duration   `json:"time_limit"`
	Points            uint64     `json:"points_awarded"`
	Answers           []string   `json:"answers"`
	AxisLabels        AxisLabels `json:"axis_labels"`
}

func (o *Order) validate() error {
	if len(o.Title) > maxTitleLength {
		return errTitleTooLong
	}
	if err := o.Media.validate(); err != nil {
		return err
	}
	if o.IntroduceQuestion < 0 || o.IntroduceQuestion > maxIntroduceQuestion {
		return errBadIntroduce
	}
	if o.TimeLimit < minTimeLimit || o.TimeLimit > maxTimeLimit {
		return errBadTimeLimit
	}
	if len(o.Answers) == 0 || len(o.Answers) > maxMCAnswers {
		return errBadAnswerCount
	}
	for _, a := range o.Answers {
		if len(a) > maxAnswerText {
			return errAnswerTooLong
		}
	}
	return nil
}

type orderState struct {
	state         SlideState
	questionStart time.Time
	answerStart   time.Time
	shuffled      []string
	answers       map[Id]orderAnswer
}

type orderAnswer struct {
	list []string
	at   time.Time
}

// OrderQuestionAnnouncement introduces the question before items appear.
type OrderQuestionAnnouncement struct {
	Type     string `json:"type"`
	Index    int    `json:"index"`
	Count    int    `json:"count"`
	Question string `json:"question"`
	Media    *Media `json:"media,omitempty"`
	Duration int64  `json:"duration"`
}

// OrderAnswersAnnouncement opens the window with the shuffled items.
type OrderAnswersAnnouncement struct {
	Type       string     `json:"type"`
	Index      int        `json:"index"`
	Count      int        `json:"count"`
	Duration   int64      `json:"duration"`
	Answers    []string   `json:"answers"`
	AxisLabels AxisLabels `json:"axis_labels"`
}

// OrderAnswersCount tells hosts how many players have answered.
type OrderAnswersCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// OrderAnswersResults reveals the correct order and the outcome counts.
type OrderAnswersResults struct {
	Type         string   `json:"type"`
	Index        int      `json:"index"`
	Count        int      `json:"count"`
	Answers      []string `json:"answers"`
	CorrectCount int      `json:"correct_count"`
	WrongCount   int      `json:"wrong_count"`
}

func (OrderQuestionAnnouncement) updateMessage() {}
func (OrderAnswersAnnouncement) updateMessage()  {}
func (OrderAnswersCount) updateMessage()         {}
func (OrderAnswersResults) updateMessage()       {}

func (OrderQuestionAnnouncement) syncMessage() {}
func (OrderAnswersAnnouncement) syncMessage()  {}
func (OrderAnswersResults) syncMessage()       {}

const (
	typeOrderQuestionAnnouncement = "order.question_announcement"
	typeOrderAnswersAnnouncement  = "order.answers_announcement"
	typeOrderAnswersCount         = "order.answers_count"
	typeOrderAnswersResults       = "order.answers_results"
)

func (o *Order) play(ctx *SlideContext, st *orderState) {
	changeState(&st.state, StateUnstarted, StateQuestion)
	st.questionStart = ctx.Clock.Now()
	ctx.Watchers.Announce(OrderQuestionAnnouncement{
		Type:     typeOrderQuestionAnnouncement,
		Index:    ctx.Index,
		Count:    ctx.Count,
		Question: o.Title,
		Media:    o.Media,
		Duration: millis(o.IntroduceQuestion.D()),
	}, ctx.Find)
	if o.IntroduceQuestion <= 0 {
		if changeState(&st.state, StateQuestion, StateAnswers) {
			o.sendAnswers(ctx, st)
		}
		return
	}
	ctx.Schedule(AlarmMessage{Kind: KindOrder, Index: ctx.Index, To: StateAnswers}, o.IntroduceQuestion.D())
}

func (o *Order) sendAnswers(ctx *SlideContext, st *orderState) {
	st.answerStart = ctx.Clock.Now()
	st.shuffled = append([]string(nil), o.Answers...)
	rng := rand.New(rand.NewSource(ctx.Clock.Now().UnixNano()))
	rng.Shuffle(len(st.shuffled), func(i, j int) {
		st.shuffled[i], st.shuffled[j] = st.shuffled[j], st.shuffled[i]
	})
	ctx.Watchers.Announce(o.answersMessage(ctx, st, millis(o.TimeLimit.D())), ctx.Find)
	ctx.Schedule(AlarmMessage{Kind: KindOrder, Index: ctx.Index, To: StateAnswersResults}, o.TimeLimit.D())
}

func (o *Order) answersMessage(ctx *SlideContext, st *orderState, duration int64) OrderAnswersAnnouncement {
	shuffled := append([]string(nil), st.shuffled...)
	return OrderAnswersAnnouncement{
		Type:       typeOrderAnswersAnnouncement,
		Index:      ctx.Index,
		Count:      ctx.Count,
		Duration:   duration,
		Answers:    shuffled,
		AxisLabels: o.AxisLabels,
	}
}

func (o *Order) receiveAlarm(ctx *SlideContext, st *orderState, alarm AlarmMessage) {
	switch alarm.To {
	case StateAnswers:
		if changeState(&st.state, StateQuestion, StateAnswers) {
			o.sendAnswers(ctx, st)
		}
	case StateAnswersResults:
		if changeState(&st.state, StateAnswers, StateAnswersResults) {
			o.sendResults(ctx, st)
		}
	}
}

func (o *Order) receiveMessage(ctx *SlideContext, st *orderState, id Id, value Value, msg IncomingMessage) bool {
	switch {
	case value.Kind == KindHost && msg.Type == MsgNext:
		switch st.state {
		case StateQuestion:
			if changeState(&st.state, StateQuestion, StateAnswers) {
				o.sendAnswers(ctx, st)
			}
		case StateAnswers:
			if changeState(&st.state, StateAnswers, StateAnswersResults) {
				o.sendResults(ctx, st)
			}
		case StateAnswersResults:
			o.addScores(ctx, st)
			return true
		}
	case value.Kind == KindPlayer && msg.Type == MsgStringArrayAnswer && msg.List != nil:
		if st.state != StateAnswers {
			return false
		}
		st.answers[id] = orderAnswer{
			list: append([]string(nil), msg.List...),
			at:   ctx.Clock.Now(),
		}
		o.afterAnswer(ctx, st)
	}
	return false
}

func (o *Order) afterAnswer(ctx *SlideContext, st *orderState) {
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
			o.sendResults(ctx, st)
		}
		return
	}
	ctx.Watchers.AnnounceSpecific(KindHost, OrderAnswersCount{
		Type:  typeOrderAnswersCount,
		Count: answered,
	}, ctx.Find)
}

func (o *Order) correct(submitted []string) bool {
	if len(submitted) != len(o.Answers) {
		return false
	}
	for i := range submitted {
		if submitted[i] != o.Answers[i] {
			return false
		}
	}
	return true
}

func (o *Order) resultsMessage(ctx *SlideContext, st *orderState) OrderAnswersResults {
	correct, wrong := 0, 0
	for _, submitted := range st.answers {
		if o.correct(submitted.list) {
			correct++
		} else {
			wrong++
		}
	}
	return OrderAnswersResults{
		Type:         typeOrderAnswersResults,
		Index:        ctx.Index,
		Count:        ctx.Count,
		Answers:      append([]string(nil), o.Answers...),
		CorrectCount: correct,
		WrongCount:   wrong,
	}
}

func (o *Order) sendResults(ctx *SlideContext, st *orderState) {
	ctx.Watchers.Announce(o.resultsMessage(ctx, st), ctx.Find)
}

func (o *Order) addScores(ctx *SlideContext, st *orderState) {
	raw := make([]ScoreEntry, 0, len(st.answers))
	for id, submitted := range st.answers {
		points := uint64(0)
		if o.correct(submitted.list) {
			points = calculatePoints(o.TimeLimit.D(), submitted.at.Sub(st.answerStart), o.Points)
		}
		raw = append(raw, ScoreEntry{Id: id, Points: points})
	}
	ctx.Leaderboard.AddScores(aggregateScores(raw, ctx.TeamOf, scoreRecipients(ctx)))
}

func (o *Order) stateMessage(ctx *SlideContext, st *orderState, id Id, value Value) SyncMessage {
	switch st.state {
	case StateUnstarted, StateQuestion:
		return OrderQuestionAnnouncement{
			Type:     typeOrderQuestionAnnouncement,
			Index:    ctx.Index,
			Count:    ctx.Count,
			Question: o.Title,
			Media:    o.Media,
			Duration: remaining(ctx.Clock, st.questionStart, o.IntroduceQuestion.D()),
		}
	case StateAnswers:
		return o.answersMessage(ctx, st, remaining(ctx.Clock, st.answerStart, o.TimeLimit.D()))
	default:
		return o.resultsMessage(ctx, st)
	}
}
