package game

import "time"

// Tunnel is the bidirectional message channel to one watcher. Sends must
// never block: implementations queue to a per-connection writer and evict
// the connection when the queue is full.
type Tunnel interface {
	SendMessage(message UpdateMessage)
	SendState(state SyncMessage)
	Close()
}

// TunnelFinder resolves a watcher id to its live tunnel, if any. It reads
// the Manager's tunnel registry and must be callable while a game lock is
// held.
type TunnelFinder func(Id) (Tunnel, bool)

// UpdateMessage is a state-delta frame pushed to clients that already hold
// state.
type UpdateMessage interface {
	updateMessage()
}

// SyncMessage is a full-state frame for clients that lack state, such as
// reconnecting watchers.
type SyncMessage interface {
	syncMessage()
}

// Schedule asks the transport layer to deliver alarm back to the game after
// at least d has elapsed. Delivery may be late or duplicated; phase
// transitions are idempotent.
type Schedule func(alarm AlarmMessage, d time.Duration)

// AlarmMessage is the opaque payload carried through the scheduler and
// handed back verbatim. It holds just enough context to be dropped when
// stale.
type AlarmMessage struct {
	Kind  SlideKind  `json:"kind"`
	Index int        `json:"index"`
	To    SlideState `json:"to"`
}

// SlideKind discriminates the slide engine union.
type SlideKind string

const (
	KindMultipleChoice SlideKind = "multiple_choice"
	KindTypeAnswer     SlideKind = "type_answer"
	KindOrder          SlideKind = "order"
)

// SlideState is the phase of a slide's sub-state-machine. Transitions only
// move forward.
type SlideState int

const (
	StateUnstarted SlideState = iota
	StateQuestion
	StateAnswers
	StateAnswersResults
)

// Incoming message type discriminators.
const (
	MsgDemandId          = "demand_id"
	MsgClaimId           = "claim_id"
	MsgNext              = "next"
	MsgIndex             = "index"
	MsgLock              = "lock"
	MsgNameRequest       = "name_request"
	MsgIndexAnswer       = "index_answer"
	MsgStringAnswer      = "string_answer"
	MsgStringArrayAnswer = "string_array_answer"
	MsgChooseTeammates   = "choose_teammates"
)

// IncomingMessage is a frame from a client. The Type field selects the
// variant; the remaining fields are its payload.
type IncomingMessage struct {
	Type  string   `json:"type"`
	Id    string   `json:"id,omitempty"`
	Index *int     `json:"index,omitempty"`
	Lock  *bool    `json:"lock,omitempty"`
	Name  string   `json:"name,omitempty"`
	Text  *string  `json:"text,omitempty"`
	List  []string `json:"list,omitempty"`
}

// IsGhost reports whether this is a pre-identification frame.
func (m IncomingMessage) IsGhost() bool {
	return m.Type == MsgDemandId || m.Type == MsgClaimId
}

// IsHost reports whether this frame may only come from the host.
func (m IncomingMessage) IsHost() bool {
	return m.Type == MsgNext || m.Type == MsgIndex || m.Type == MsgLock
}

// IsUnassigned reports whether this frame may only come from an unassigned
// watcher.
func (m IncomingMessage) IsUnassigned() bool {
	return m.Type == MsgNameRequest
}

// IsPlayer reports whether this frame may only come from a player.
func (m IncomingMessage) IsPlayer() bool {
	switch m.Type {
	case MsgIndexAnswer, MsgStringAnswer, MsgStringArrayAnswer, MsgChooseTeammates:
		return true
	}
	return false
}

// TruncatedList carries the first items of a longer list plus its exact
// length, so clients can render "and N more".
type TruncatedList[T any] struct {
	ExactCount int `json:"exact_count"`
	Items      []T `json:"items"`
}

const truncateLimit = 50

func truncateList[T any](items []T, limit int) TruncatedList[T] {
	n := len(items)
	if n > limit {
		items = items[:limit]
	}
	out := make([]T, len(items))
	copy(out, items)
	return TruncatedList[T]{ExactCount: n, Items: out}
}

// ScoreEntry is one row of the leaderboard.
type ScoreEntry struct {
	Id     Id     `json:"id"`
	Points uint64 `json:"points"`
}

// ScoreMessage is a single player's points and 0-based rank.
type ScoreMessage struct {
	Points   uint64 `json:"points"`
	Position int    `json:"position"`
}

// SlideStat counts how many watchers earned points on a slide and how many
// did not.
type SlideStat struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
}

// --- Game-level updates ---

// ErrorMessage reports a rejected join to the watcher before its
// connection closes.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// IdAssignMessage hands a fresh watcher id to a new connection.
type IdAssignMessage struct {
	Type string `json:"type"`
	Id   Id     `json:"id"`
}

// MetainfoMessage carries per-game presentation options to a joining or
// reconnecting watcher.
type MetainfoMessage struct {
	Type        string `json:"type"`
	ShowAnswers bool   `json:"show_answers"`
	Locked      bool   `json:"locked"`
}

// WaitingScreenMessage is the lobby roster.
type WaitingScreenMessage struct {
	Type    string                `json:"type"`
	Players TruncatedList[string] `json:"players"`
}

// TeamDisplayMessage lists the formed teams, shown to hosts.
type TeamDisplayMessage struct {
	Type  string                `json:"type"`
	Teams TruncatedList[string] `json:"teams"`
}

// NameChooseMessage prompts an unassigned watcher for a name.
type NameChooseMessage struct {
	Type string `json:"type"`
}

// NameAssignMessage confirms the watcher's accepted name.
type NameAssignMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// NameErrorMessage reports why a requested name was rejected.
type NameErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// FindTeamMessage tells a player which team they belong to.
type FindTeamMessage struct {
	Type string `json:"type"`
	Team string `json:"team"`
}

// ChooseTeammatesMessage prompts a player to pick preferred teammates.
type ChooseTeammatesMessage struct {
	Type         string   `json:"type"`
	MaxSelection int      `json:"max_selection"`
	Available    []string `json:"available"`
}

// LeaderboardMessage carries the current and prior cumulative standings.
type LeaderboardMessage struct {
	Type    string                    `json:"type"`
	Current TruncatedList[ScoreEntry] `json:"current"`
	Prior   TruncatedList[ScoreEntry] `json:"prior"`
}

// ScoreUpdateMessage carries one player's own standing.
type ScoreUpdateMessage struct {
	Type  string        `json:"type"`
	Score *ScoreMessage `json:"score,omitempty"`
}

// SummaryMessage is the host's final summary.
type SummaryMessage struct {
	Type        string      `json:"type"`
	PlayerCount int         `json:"player_count"`
	Stats       []SlideStat `json:"stats"`
}

// PlayerSummaryMessage is a player's final per-slide point history.
type PlayerSummaryMessage struct {
	Type   string   `json:"type"`
	Points []uint64 `json:"points"`
}

func (ErrorMessage) updateMessage()           {}
func (IdAssignMessage) updateMessage()        {}
func (MetainfoMessage) updateMessage()        {}
func (WaitingScreenMessage) updateMessage()   {}
func (TeamDisplayMessage) updateMessage()     {}
func (NameChooseMessage) updateMessage()      {}
func (NameAssignMessage) updateMessage()      {}
func (NameErrorMessage) updateMessage()       {}
func (FindTeamMessage) updateMessage()        {}
func (ChooseTeammatesMessage) updateMessage() {}
func (LeaderboardMessage) updateMessage()     {}
func (ScoreUpdateMessage) updateMessage()     {}
func (SummaryMessage) updateMessage()         {}
func (PlayerSummaryMessage) updateMessage()   {}

// Several lobby-shaped messages double as full-state syncs.
func (MetainfoMessage) syncMessage()        {}
func (WaitingScreenMessage) syncMessage()   {}
func (TeamDisplayMessage) syncMessage()     {}
func (NameChooseMessage) syncMessage()      {}
func (FindTeamMessage) syncMessage()        {}
func (ChooseTeammatesMessage) syncMessage() {}
func (SummaryMessage) syncMessage()         {}
func (PlayerSummaryMessage) syncMessage()   {}

// --- Game-level syncs with slide position ---

// LeaderboardSync restores the standings screen after a reconnect.
type LeaderboardSync struct {
	Type    string                    `json:"type"`
	Index   int                       `json:"index"`
	Count   int                       `json:"count"`
	Current TruncatedList[ScoreEntry] `json:"current"`
	Prior   TruncatedList[ScoreEntry] `json:"prior"`
}

// ScoreSync restores a player's own standing screen after a reconnect.
type ScoreSync struct {
	Type  string        `json:"type"`
	Index int           `json:"index"`
	Count int           `json:"count"`
	Score *ScoreMessage `json:"score,omitempty"`
}

func (LeaderboardSync) syncMessage() {}
func (ScoreSync) syncMessage()       {}

// Message type tags for game-level frames.
const (
	TypeError           = "error"
	TypeIdAssign        = "id_assign"
	TypeMetainfo        = "metainfo"
	TypeWaitingScreen   = "waiting_screen"
	TypeTeamDisplay     = "team_display"
	TypeNameChoose      = "name_choose"
	TypeNameAssign      = "name_assign"
	TypeNameError       = "name_error"
	TypeFindTeam        = "find_team"
	TypeChooseTeammates = "choose_teammates"
	TypeLeaderboard     = "leaderboard"
	TypeScore           = "score"
	TypeSummary         = "summary"
	TypePlayerSummary   = "player_summary"
)

func millis(d time.Duration) int64 {
	return d.Milliseconds()
}
