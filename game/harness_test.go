package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeTunnel struct {
	mu      sync.Mutex
	updates []UpdateMessage
	states  []SyncMessage
	closed  bool
}

func (f *fakeTunnel) SendMessage(message UpdateMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, message)
}

func (f *fakeTunnel) SendState(state SyncMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
}

func (f *fakeTunnel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeTunnel) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTunnel) Updates() []UpdateMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]UpdateMessage, len(f.updates))
	copy(out, f.updates)
	return out
}

func (f *fakeTunnel) States() []SyncMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SyncMessage, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeTunnel) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = nil
	f.states = nil
}

// lastOfType returns the most recent update of type T, if any.
func lastOfType[T UpdateMessage](f *fakeTunnel) (T, bool) {
	var last T
	found := false
	for _, msg := range f.Updates() {
		if typed, ok := msg.(T); ok {
			last = typed
			found = true
		}
	}
	return last, found
}

type pendingAlarm struct {
	alarm AlarmMessage
	after time.Duration
}

// harness wires a game to fake clocks, tunnels and a manual scheduler so
// tests control time explicitly.
type harness struct {
	t       *testing.T
	clock   *fakeClock
	tunnels *TunnelMap
	game    *Game

	mu     sync.Mutex
	alarms []pendingAlarm

	host       Id
	hostTunnel *fakeTunnel
}

func newHarness(t *testing.T, config FuizConfig, options Options) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		clock:   newFakeClock(),
		tunnels: NewTunnelMap(),
	}
	schedule := func(alarm AlarmMessage, d time.Duration) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.alarms = append(h.alarms, pendingAlarm{alarm: alarm, after: d})
	}
	h.game = NewGame(config, options, h.clock, h.tunnels.Finder(), schedule)

	h.host = NewId()
	h.hostTunnel = &fakeTunnel{}
	h.tunnels.Set(h.host, h.hostTunnel)
	require.NoError(t, h.game.AddHost(h.host))
	return h
}

// join adds a watcher and, unless the game assigns random names, requests
// the given name.
func (h *harness) join(name string) (Id, *fakeTunnel) {
	h.t.Helper()
	id := NewId()
	tunnel := &fakeTunnel{}
	h.tunnels.Set(id, tunnel)
	require.NoError(h.t, h.game.AddWatcher(id))
	if name != "" {
		h.game.ReceiveMessage(id, IncomingMessage{Type: MsgNameRequest, Name: name})
	}
	return id, tunnel
}

// fire advances the clock and delivers every alarm scheduled for at most d
// from now, in scheduling order.
func (h *harness) fire(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d)
	h.mu.Lock()
	due := h.alarms
	h.alarms = nil
	h.mu.Unlock()
	for _, p := range due {
		if p.after <= d {
			h.game.ReceiveAlarm(p.alarm)
		} else {
			h.mu.Lock()
			h.alarms = append(h.alarms, pendingAlarm{alarm: p.alarm, after: p.after - d})
			h.mu.Unlock()
		}
	}
}

func (h *harness) hostNext() {
	h.game.ReceiveMessage(h.host, IncomingMessage{Type: MsgNext})
}

func (h *harness) answerIndex(id Id, index int) {
	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgIndexAnswer, Index: &index})
}

func (h *harness) answerText(id Id, text string) {
	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgStringAnswer, Text: &text})
}

func (h *harness) answerList(id Id, list []string) {
	h.game.ReceiveMessage(id, IncomingMessage{Type: MsgStringArrayAnswer, List: list})
}

// mcQuiz is a single multiple choice slide quiz used across tests.
func mcQuiz(introduce, limit time.Duration) FuizConfig {
	return FuizConfig{
		Title: "Capital Cities",
		Slides: []Slide{{
			Kind: KindMultipleChoice,
			MultipleChoice: &MultipleChoice{
				Title:             "What is the capital of France?",
				IntroduceQuestion: Duration(introduce),
				TimeLimit:         Duration(limit),
				Points:            1000,
				Answers: []AnswerChoice{
					{Correct: false, Content: TextOrMedia{Text: "London"}},
					{Correct: true, Content: TextOrMedia{Text: "Paris"}},
					{Correct: false, Content: TextOrMedia{Text: "Berlin"}},
				},
			},
		}},
	}
}
