package macro

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/macrokey/keys"
)

// Profile is a named set of banks for one device.
type Profile struct {
	ID                  string
	Name                string
	Author              string
	Icon                string
	Background          string
	IncludeApplications []string
	ExcludeApplications []string
	FixedDelays         bool
	PressDelay          int64
	ReleaseDelay        int64
	SendDelays          bool
	Models              []string
	Properties          map[string]any
	ReadOnly            bool
	Version             float32
	BaseProfile         string

	// Device is the UID of the device owning the profile. Not persisted.
	Device string

	mu    sync.RWMutex
	banks map[int]*Bank
}

// NewProfile creates an empty profile with a fresh id.
func NewProfile(device, name string) *Profile {
	return NewProfileWithID(device, uuid.NewString(), name)
}

// NewProfileWithID creates an empty profile with a known id.
func NewProfileWithID(device, id, name string) *Profile {
	return &Profile{
		ID:         id,
		Name:       name,
		Device:     device,
		Version:    1,
		Properties: map[string]any{},
		banks:      map[int]*Bank{},
	}
}

// Copy clones the profile, banks and macros included, under a new id.
func (p *Profile) Copy(id, name string) *Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c := &Profile{
		ID:                  id,
		Name:                name,
		Author:              p.Author,
		Icon:                p.Icon,
		Background:          p.Background,
		IncludeApplications: slices.Clone(p.IncludeApplications),
		ExcludeApplications: slices.Clone(p.ExcludeApplications),
		FixedDelays:         p.FixedDelays,
		PressDelay:          p.PressDelay,
		ReleaseDelay:        p.ReleaseDelay,
		SendDelays:          p.SendDelays,
		Models:              slices.Clone(p.Models),
		Properties:          maps.Clone(p.Properties),
		Version:             p.Version,
		BaseProfile:         p.BaseProfile,
		Device:              p.Device,
		banks:               map[int]*Bank{},
	}
	for n, b := range p.banks {
		nb := NewBank(n, b.Name)
		nb.Properties = maps.Clone(b.Properties)
		for _, m := range b.Macros() {
			nb.Add(m.Clone())
		}
		c.banks[n] = nb
	}
	return c
}

// Bank returns bank n, creating it when missing.
func (p *Profile) Bank(n int) *Bank {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.banks[n]
	if !ok {
		b = NewBank(n, "")
		p.banks[n] = b
	}
	return b
}

// LookupBank returns bank n if it exists.
func (p *Profile) LookupBank(n int) (*Bank, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.banks[n]
	return b, ok
}

// BankNamed finds a bank by name.
func (p *Profile) BankNamed(name string) (*Bank, bool) {
	for _, b := range p.Banks() {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Banks returns every bank ordered by number.
func (p *Profile) Banks() []*Bank {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Bank, 0, len(p.banks))
	for _, b := range p.banks {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b *Bank) int { return a.Number - b.Number })
	return out
}

// PutBank stores b under its number, replacing any existing bank.
func (p *Profile) PutBank(b *Bank) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banks[b.Number] = b
}

// RemoveBank deletes bank n.
func (p *Profile) RemoveBank(n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.banks[n]; !ok {
		return false
	}
	delete(p.banks, n)
	return true
}

// NextFreeBankNumber returns the lowest unused number below max.
func (p *Profile) NextFreeBankNumber(max int) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i := 0; i < max; i++ {
		if _, ok := p.banks[i]; !ok {
			return i, nil
		}
	}
	return 0, ErrNoFreeBanks
}

// AddBank creates a named bank at the next free number.
func (p *Profile) AddBank(name string, max int) (*Bank, error) {
	n, err := p.NextFreeBankNumber(max)
	if err != nil {
		return nil, err
	}
	b := NewBank(n, name)
	p.PutBank(b)
	return b, nil
}

// Link makes every bank inherit from the same-numbered bank of base. A nil
// base unlinks.
func (p *Profile) Link(base *Profile) {
	for _, b := range p.Banks() {
		if base == nil {
			b.SetBase(nil)
			continue
		}
		bb, _ := base.LookupBank(b.Number)
		b.SetBase(bb)
	}
}

// BindingForAction finds the first action macro for action activated in
// state, across banks in order.
func (p *Profile) BindingForAction(state keys.State, action string) (ActionBinding, bool) {
	for _, b := range p.Banks() {
		for _, m := range b.MacrosFor(state) {
			if m.Kind() == KindAction && m.Action == action {
				return NewActionBinding(p.Device, action, m.ActivatedBy), true
			}
		}
	}
	return ActionBinding{}, false
}

// MacroFor finds the macro in bank whose activation codes are all members of
// seq and whose state matches.
func (p *Profile) MacroFor(seq keys.Sequence, bank int) (*Macro, bool) {
	b, ok := p.LookupBank(bank)
	if !ok {
		return nil, false
	}
	for _, m := range b.MacrosFor(seq.State) {
		if len(m.ActivatedBy.Codes) == 0 {
			continue
		}
		all := true
		for _, c := range m.ActivatedBy.Codes {
			if !seq.Contains(c) {
				all = false
				break
			}
		}
		if all {
			return m, true
		}
	}
	return nil, false
}

// ActivatedByApplication reports whether application matching applies.
func (p *Profile) ActivatedByApplication() bool {
	return len(p.IncludeApplications) > 0 || len(p.ExcludeApplications) > 0
}

// Delays returns the timing settings executions of this profile use.
func (p *Profile) Delays() Delays {
	return Delays{
		Fixed:   p.FixedDelays,
		Send:    p.SendDelays,
		Press:   time.Duration(p.PressDelay) * time.Millisecond,
		Release: time.Duration(p.ReleaseDelay) * time.Millisecond,
	}
}
