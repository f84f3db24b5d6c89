package keys

import (
	"fmt"
	"strings"
)

// State is the transition of a key: pressed, held past the hold delay, or
// released.
type State uint8

const (
	None State = iota
	Down
	Held
	Up
)

// States lists the transitions a macro can be activated by.
var States = []State{Down, Held, Up}

// MacroStates are the transitions offered when picking a free activation
// sequence for a new macro.
var MacroStates = []State{Up, Held}

func (s State) String() string {
	switch s {
	case Down:
		return "DOWN"
	case Held:
		return "HELD"
	case Up:
		return "UP"
	default:
		return "NONE"
	}
}

// ParseState parses DOWN, HELD or UP (case-insensitive).
func ParseState(s string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DOWN":
		return Down, nil
	case "HELD":
		return Held, nil
	case "UP":
		return Up, nil
	}
	return None, fmt.Errorf("unknown key state %q", s)
}

// StateForValue maps an EV_KEY event value to a transition. Autorepeat
// (value 2) has no transition.
func StateForValue(v int32) (State, bool) {
	switch v {
	case 0:
		return Up, true
	case 1:
		return Down, true
	}
	return None, false
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
