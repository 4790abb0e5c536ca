package game

import "github.com/google/uuid"

// Id is an opaque random identifier shared by watchers, teams and other
// internal keys. It serializes as its canonical text form.
type Id struct {
	uuid.UUID
}

// NewId returns a fresh random Id.
func NewId() Id {
	return Id{uuid.New()}
}

// ParseId parses the text form of an Id.
func ParseId(s string) (Id, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Id{}, err
	}
	return Id{u}, nil
}
