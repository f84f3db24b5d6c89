package macro

import (
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/Alia5/macrokey/keys"
)

var (
	ErrNoFreeActivation = errors.New("no free activation sequence")
	ErrNoFreeBanks      = errors.New("no free banks")
)

// Bank is a numbered group of macros. Exactly one bank per profile is active
// on a device at a time. A bank may inherit the macros of the same-numbered
// bank of a base profile; its own macros take precedence.
type Bank struct {
	Number     int
	Name       string
	Properties map[string]any

	mu     sync.RWMutex
	macros []*Macro
	base   *Bank
	idx    index
}

// index is rebuilt on every mutation. Its slices are never modified after
// the build, so handing them out is safe.
type index struct {
	byState    map[keys.State][]*Macro
	bySequence map[string]*Macro
	uinput     []*Macro
	normal     []*Macro
	normalHeld []*Macro
}

// NewBank creates an empty bank.
func NewBank(number int, name string) *Bank {
	b := &Bank{Number: number, Name: name, Properties: map[string]any{}}
	b.rebuild()
	return b
}

// DisplayName returns the name, or "Bank <n>" when unnamed.
func (b *Bank) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return "Bank " + strconv.Itoa(b.Number)
}

// Macros returns the bank's own macros in order.
func (b *Bank) Macros() []*Macro {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.macros)
}

// Len is the number of own macros.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.macros)
}

// Add appends m, replacing any own macro bound to the same sequence.
func (b *Bank) Add(m *Macro) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(m.ActivatedBy); i >= 0 {
		b.macros[i] = m
	} else {
		b.macros = append(b.macros, m)
	}
	b.rebuild()
}

// Set replaces the macro at position i and returns the previous one.
func (b *Bank) Set(i int, m *Macro) *Macro {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.macros[i]
	if j := b.indexOf(m.ActivatedBy); j >= 0 && j != i {
		b.macros = slices.Delete(b.macros, j, j+1)
		if j < i {
			i--
		}
	}
	b.macros[i] = m
	b.rebuild()
	return old
}

// Remove deletes the own macro bound to seq.
func (b *Bank) Remove(seq keys.Sequence) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(seq)
	if i < 0 {
		return false
	}
	b.macros = slices.Delete(b.macros, i, i+1)
	b.rebuild()
	return true
}

// Clear removes every own macro.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.macros = nil
	b.rebuild()
}

// SetBase links the bank to the bank it inherits from. nil unlinks.
func (b *Bank) SetBase(base *Bank) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.base = base
	b.rebuild()
}

// Base returns the bank this one inherits from.
func (b *Bank) Base() *Bank {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.base
}

// Reindex rebuilds the derived indices, picking up changes made to the base
// chain since the last mutation.
func (b *Bank) Reindex() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild()
}

// Macro looks up the effective macro for seq, inherited ones included.
func (b *Bank) Macro(seq keys.Sequence) (*Macro, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.idx.bySequence[seq.String()]
	return m, ok
}

// Contains reports whether seq is bound, inherited bindings included.
func (b *Bank) Contains(seq keys.Sequence) bool {
	_, ok := b.Macro(seq)
	return ok
}

// MacrosFor returns the own macros activated in state.
func (b *Bank) MacrosFor(state keys.State) []*Macro {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.byState[state]
}

// UInputMacros are the effective remap macros.
func (b *Bank) UInputMacros() []*Macro {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.uinput
}

// NormalMacros are the effective non-remap macros activated on DOWN or UP.
func (b *Bank) NormalMacros() []*Macro {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.normal
}

// NormalHeldMacros are the effective non-remap macros activated on HELD.
func (b *Bank) NormalHeldMacros() []*Macro {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.normalHeld
}

// AreKeysInUse reports whether another macro than exclude is bound to the
// same set of codes in state.
func (b *Bank) AreKeysInUse(state keys.State, codes []keys.Code, exclude *Macro) bool {
	probe := keys.NewSequence(state, codes...)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.macros {
		if m == exclude || m.State() != state {
			continue
		}
		if m.ActivatedBy.SameKeys(probe) {
			return true
		}
	}
	return false
}

// NextFreeActivationSequence finds the first single-key sequence over
// supported EV_KEY codes, trying UP before HELD, that nothing is bound to.
func (b *Bank) NextFreeActivationSequence(supported []keys.Code) (keys.Sequence, error) {
	for _, state := range keys.MacroStates {
		for _, c := range supported {
			if !c.IsKey() {
				continue
			}
			seq := keys.NewSequence(state, c)
			if !b.Contains(seq) {
				return seq, nil
			}
		}
	}
	return keys.Sequence{}, ErrNoFreeActivation
}

func (b *Bank) indexOf(seq keys.Sequence) int {
	return slices.IndexFunc(b.macros, func(m *Macro) bool { return m.ActivatedBy.Equal(seq) })
}

// rebuild must be called with mu held for writing.
func (b *Bank) rebuild() {
	idx := index{
		byState:    map[keys.State][]*Macro{},
		bySequence: map[string]*Macro{},
	}
	for _, m := range b.macros {
		idx.byState[m.State()] = append(idx.byState[m.State()], m)
	}

	visited := map[*Bank]bool{}
	add := func(m *Macro) {
		id := m.ActivatedBy.String()
		if _, dup := idx.bySequence[id]; dup {
			return
		}
		idx.bySequence[id] = m
		switch {
		case m.IsUInput():
			idx.uinput = append(idx.uinput, m)
		case m.State() == keys.Held:
			idx.normalHeld = append(idx.normalHeld, m)
		default:
			idx.normal = append(idx.normal, m)
		}
	}
	for _, m := range b.macros {
		add(m)
	}
	visited[b] = true
	for base := b.base; base != nil && !visited[base]; {
		visited[base] = true
		base.mu.RLock()
		inherited := slices.Clone(base.macros)
		next := base.base
		base.mu.RUnlock()
		for _, m := range inherited {
			add(m)
		}
		base = next
	}
	b.idx = idx
}
