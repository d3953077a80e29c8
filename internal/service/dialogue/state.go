package dialogue

import "fmt"

// State is the orchestrator's position in the turn sequence.
type State int

const (
	StateIdle State = iota
	StateAwaitingAdvance
	StateRevealing
	StateAwaitingChoice
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAdvance:
		return "awaiting_advance"
	case StateRevealing:
		return "revealing"
	case StateAwaitingChoice:
		return "awaiting_choice"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText renders the state for JSON frames.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Speaker identifies which panel a line belongs to.
type Speaker int

const (
	Responder Speaker = iota
	Player
)

func (s Speaker) String() string {
	if s == Player {
		return "player"
	}
	return "responder"
}

// MarshalText renders the speaker for JSON frames.
func (s Speaker) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	for c := StateIdle; c <= StateFinished; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown dialogue state %q", b)
}

// UnmarshalText parses a speaker name written by MarshalText.
func (s *Speaker) UnmarshalText(b []byte) error {
	switch string(b) {
	case "responder":
		*s = Responder
	case "player":
		*s = Player
	default:
		return fmt.Errorf("unknown speaker %q", b)
	}
	return nil
}
