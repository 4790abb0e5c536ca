package game

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
)

// GameId is the short, human-typable game identifier. It is a 5-digit octal
// number in [0o10000, 0o100000), displayed with a leading digit that is
// never zero so every code is exactly five characters.
type GameId uint16

const (
	gameIdMin = 0o10000
	gameIdMax = 0o100000
)

// NewGameId draws a random game id from the full range.
func NewGameId() GameId {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	n := binary.BigEndian.Uint16(buf[:])
	return GameId(gameIdMin + n%(gameIdMax-gameIdMin))
}

func (g GameId) String() string {
	return fmt.Sprintf("%05o", uint16(g))
}

// ParseGameId parses the octal text form, rejecting out-of-range values.
func ParseGameId(s string) (GameId, error) {
	n, err := strconv.ParseUint(s, 8, 16)
	if err != nil {
		return 0, err
	}
	if n < gameIdMin || n >= gameIdMax {
		return 0, fmt.Errorf("game id out of range: %s", s)
	}
	return GameId(n), nil
}

func (g GameId) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GameId) UnmarshalText(text []byte) error {
	parsed, err := ParseGameId(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
