package game

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration is a time.Duration that serializes as integer milliseconds, the
// unit used throughout the wire protocol.
type Duration time.Duration

// D converts back to a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Milliseconds())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// Validation bounds for slide configuration.
const (
	maxSlides            = 100
	maxMCAnswers         = 8
	maxIntroduceQuestion = Duration(360 * time.Second)
	minTimeLimit         = Duration(1 * time.Second)
	maxTimeLimit         = Duration(600 * time.Second)
)

var (
	errInvalidSlide   = errors.New("slide is missing its engine configuration")
	errTitleTooLong   = errors.New("title is too long")
	errBadIntroduce   = errors.New("introduce_question is out of range")
	errBadTimeLimit   = errors.New("time_limit is out of range")
	errBadAnswerCount = errors.New("answer count is out of range")
	errAnswerTooLong  = errors.New("answer text is too long")
	errNoSlides       = errors.New("fuiz has no slides")
	errTooManySlides  = errors.New("fuiz has too many slides")
)

// FuizConfig is the immutable quiz content a game is created from.
type FuizConfig struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Validate checks the whole configuration before a game is created.
func (f *FuizConfig) Validate() error {
	if len(f.Title) > maxTitleLength {
		return errTitleTooLong
	}
	if len(f.Slides) == 0 {
		return errNoSlides
	}
	if len(f.Slides) > maxSlides {
		return errTooManySlides
	}
	for i := range f.Slides {
		if err := f.Slides[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// Options are the per-game settings chosen by the host at creation.
type Options struct {
	// RandomNames assigns generated names instead of prompting players.
	RandomNames bool `json:"random_names"`
	// ShowAnswers lets player devices render answer contents directly.
	ShowAnswers bool `json:"show_answers"`
	// NoLeaderboard suppresses standings between slides and real point
	// values in the final summary.
	NoLeaderboard bool `json:"no_leaderboard"`
	// Teams enables team play when set.
	Teams *TeamOptions `json:"teams,omitempty"`
}
