package game

import (
	"math"
	"time"
)

// SlideContext is the surrounding game state an engine needs while running
// a slide. The Game's lock is held for every call into an engine, so engine
// state needs no locking of its own.
type SlideContext struct {
	Index       int
	Count       int
	Clock       Clock
	Watchers    *Watchers
	Leaderboard *Leaderboard
	Find        TunnelFinder
	Schedule    Schedule
	// Teams is nil in individual games.
	Teams *Teams
}

// TeamOf returns the scoring group for a watcher: its team id in team
// games, its own id otherwise.
func (c *SlideContext) TeamOf(id Id) Id {
	if c.Teams != nil {
		if v, ok := c.Watchers.Get(id); ok && v.Kind == KindPlayer {
			if team, ok := v.Player.Team(); ok {
				return team
			}
		}
	}
	return id
}

// calculatePoints implements linear decay: full points at the instant the
// answer window opens, half at its close. A clock anomaly that yields a
// negative elapsed time counts as instantaneous.
func calculatePoints(fullDuration, taken time.Duration, points uint64) uint64 {
	if taken < 0 {
		taken = 0
	}
	fraction := float64(taken) / float64(fullDuration)
	return uint64(math.Floor(float64(points) * (1 - fraction/2)))
}

// changeState advances state from before to after and reports whether it
// did. Duplicate alarms and racing host skips collapse to a no-op here.
func changeState(state *SlideState, before, after SlideState) bool {
	if *state != before {
		return false
	}
	*state = after
	return true
}

// aggregateScores folds raw per-player awards into final awards. In team
// games each team is credited the minimum of its members' awards; everyone
// lists the ids that must appear even with zero points. The first entry for
// an id wins.
func aggregateScores(raw []ScoreEntry, teamOf func(Id) Id, everyone []Id) []ScoreEntry {
	grouped := make(map[Id]uint64, len(raw))
	order := make([]Id, 0, len(raw))
	for _, e := range raw {
		key := teamOf(e.Id)
		if prev, ok := grouped[key]; ok {
			if e.Points < prev {
				grouped[key] = e.Points
			}
		} else {
			grouped[key] = e.Points
			order = append(order, key)
		}
	}

	out := make([]ScoreEntry, 0, len(order)+len(everyone))
	seen := make(map[Id]struct{}, len(order)+len(everyone))
	for _, id := range order {
		out = append(out, ScoreEntry{Id: id, Points: grouped[id]})
		seen[id] = struct{}{}
	}
	for _, id := range everyone {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, ScoreEntry{Id: id, Points: 0})
	}
	return out
}

// scoreRecipients lists every id that must receive a score entry for the
// current slide: all team ids in team games, all connected players
// otherwise.
func scoreRecipients(ctx *SlideContext) []Id {
	if ctx.Teams != nil {
		return ctx.Teams.AllIds()
	}
	entries := ctx.Watchers.SpecificVec(KindPlayer, ctx.Find)
	ids := make([]Id, len(entries))
	for i, e := range entries {
		ids[i] = e.Id
	}
	return ids
}

// livePlayers returns the set of currently connected player ids.
func livePlayers(ctx *SlideContext) map[Id]struct{} {
	entries := ctx.Watchers.SpecificVec(KindPlayer, ctx.Find)
	set := make(map[Id]struct{}, len(entries))
	for _, e := range entries {
		set[e.Id] = struct{}{}
	}
	return set
}

// PossiblyHidden is answer content that may be masked for a recipient.
type PossiblyHidden struct {
	Content *TextOrMedia `json:"content,omitempty"`
	Hidden  bool         `json:"hidden,omitempty"`
}

// Slide is the engine union. Exactly one of the pointers is set, matching
// Kind.
type Slide struct {
	Kind           SlideKind       `json:"kind"`
	MultipleChoice *MultipleChoice `json:"multiple_choice,omitempty"`
	TypeAnswer     *TypeAnswer     `json:"type_answer,omitempty"`
	Order          *Order          `json:"order,omitempty"`
}

func (s *Slide) validate() error {
	switch s.Kind {
	case KindMultipleChoice:
		if s.MultipleChoice != nil {
			return s.MultipleChoice.validate()
		}
	case KindTypeAnswer:
		if s.TypeAnswer != nil {
			return s.TypeAnswer.validate()
		}
	case KindOrder:
		if s.Order != nil {
			return s.Order.validate()
		}
	}
	return errInvalidSlide
}

// ToState prepares the slide's runtime state for a fresh playthrough.
func (s *Slide) ToState(clock Clock) *SlideRuntime {
	return &SlideRuntime{slide: s, clock: clock}
}

// SlideRuntime is one playthrough of a slide. Re-entering a slide builds a
// fresh runtime.
type SlideRuntime struct {
	slide *Slide
	clock Clock

	mc  *mcState
	ta  *taState
	ord *orderState
}

// Play enters the slide and starts its timers.
func (r *SlideRuntime) Play(ctx *SlideContext) {
	ctx.Clock = r.clock
	switch r.slide.Kind {
	case KindMultipleChoice:
		r.mc = &mcState{answers: make(map[Id]mcAnswer)}
		r.slide.MultipleChoice.play(ctx, r.mc)
	case KindTypeAnswer:
		r.ta = &taState{answers: make(map[Id]taAnswer)}
		r.slide.TypeAnswer.play(ctx, r.ta)
	case KindOrder:
		r.ord = &orderState{answers: make(map[Id]orderAnswer)}
		r.slide.Order.play(ctx, r.ord)
	}
}

// ReceiveAlarm applies a timer expiry. Stale alarms for earlier phases are
// absorbed.
func (r *SlideRuntime) ReceiveAlarm(ctx *SlideContext, alarm AlarmMessage) {
	ctx.Clock = r.clock
	if alarm.Kind != r.slide.Kind {
		return
	}
	switch r.slide.Kind {
	case KindMultipleChoice:
		r.slide.MultipleChoice.receiveAlarm(ctx, r.mc, alarm)
	case KindTypeAnswer:
		r.slide.TypeAnswer.receiveAlarm(ctx, r.ta, alarm)
	case KindOrder:
		r.slide.Order.receiveAlarm(ctx, r.ord, alarm)
	}
}

// ReceiveMessage applies a watcher frame and reports whether the slide has
// finished.
func (r *SlideRuntime) ReceiveMessage(ctx *SlideContext, id Id, value Value, msg IncomingMessage) bool {
	ctx.Clock = r.clock
	switch r.slide.Kind {
	case KindMultipleChoice:
		return r.slide.MultipleChoice.receiveMessage(ctx, r.mc, id, value, msg)
	case KindTypeAnswer:
		return r.slide.TypeAnswer.receiveMessage(ctx, r.ta, id, value, msg)
	case KindOrder:
		return r.slide.Order.receiveMessage(ctx, r.ord, id, value, msg)
	}
	return false
}

// StateMessage builds the full-state sync for a reconnecting watcher.
func (r *SlideRuntime) StateMessage(ctx *SlideContext, id Id, value Value) SyncMessage {
	ctx.Clock = r.clock
	switch r.slide.Kind {
	case KindMultipleChoice:
		return r.slide.MultipleChoice.stateMessage(ctx, r.mc, id, value)
	case KindTypeAnswer:
		return r.slide.TypeAnswer.stateMessage(ctx, r.ta, id, value)
	case KindOrder:
		return r.slide.Order.stateMessage(ctx, r.ord, id, value)
	}
	return nil
}
