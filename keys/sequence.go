package keys

import (
	"encoding/json"
	"slices"
	"strings"
)

// Sequence is the set of codes that together activate a macro in a given
// state. Two sequences are equal when they carry the same state and the same
// codes in the same order.
type Sequence struct {
	State State
	Codes []Code
}

// NewSequence builds a sequence from state and codes.
func NewSequence(state State, codes ...Code) Sequence {
	return Sequence{State: state, Codes: slices.Clone(codes)}
}

// String renders the sequence as the code names joined by '_' followed by
// the state, e.g. KEY_A_KEY_B_UP. It doubles as the sequence identity.
func (s Sequence) String() string {
	var b strings.Builder
	for _, c := range s.Codes {
		b.WriteString(c.Name())
		b.WriteByte('_')
	}
	b.WriteString(s.State.String())
	return b.String()
}

func (s Sequence) Len() int { return len(s.Codes) }

func (s Sequence) Equal(o Sequence) bool {
	return s.State == o.State && slices.Equal(s.Codes, o.Codes)
}

// Contains reports whether c is one of the activation codes.
func (s Sequence) Contains(c Code) bool { return slices.Contains(s.Codes, c) }

// SameKeys reports whether both sequences use the same set of codes,
// ignoring order and state.
func (s Sequence) SameKeys(o Sequence) bool {
	if len(s.Codes) != len(o.Codes) {
		return false
	}
	a, b := s.sorted(), o.sorted()
	return slices.Equal(a, b)
}

func (s Sequence) sorted() []Code {
	out := slices.Clone(s.Codes)
	slices.SortFunc(out, func(x, y Code) int {
		switch {
		case x.Less(y):
			return -1
		case y.Less(x):
			return 1
		}
		return 0
	})
	return out
}

// WithState returns a copy of the sequence activated in another state.
func (s Sequence) WithState(state State) Sequence {
	return Sequence{State: state, Codes: slices.Clone(s.Codes)}
}

func (s Sequence) Clone() Sequence { return s.WithState(s.State) }

type sequenceJSON struct {
	State State  `json:"state" yaml:"state"`
	Keys  []Code `json:"keys" yaml:"keys"`
}

func (s Sequence) MarshalJSON() ([]byte, error) {
	keys := s.Codes
	if keys == nil {
		keys = []Code{}
	}
	return json.Marshal(sequenceJSON{State: s.State, Keys: keys})
}

func (s *Sequence) UnmarshalJSON(b []byte) error {
	var v sequenceJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s.State = v.State
	if s.State == None {
		s.State = Down
	}
	s.Codes = v.Keys
	return nil
}
