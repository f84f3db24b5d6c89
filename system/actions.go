package system

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Alia5/macrokey/macro"
)

// ErrActionExists is returned when registering an id twice.
var ErrActionExists = errors.New("action already registered")

const (
	ActionCycleBank    = "cycle-bank"
	ActionNextBank     = "next-bank"
	ActionPreviousBank = "previous-bank"
	// ActionBankPrefix followed by a number selects that bank.
	ActionBankPrefix = "bank-"
)

// Action is a named operation macros and device bindings can invoke.
type Action struct {
	ID string
	// Perform returns false when the action did not apply.
	Perform func(b macro.ActionBinding) bool
}

// Actions is a registry of actions keyed by id.
type Actions struct {
	mu      sync.RWMutex
	actions map[string]Action
}

func NewActions() *Actions { return &Actions{actions: map[string]Action{}} }

// Register adds a. Ids are unique.
func (r *Actions) Register(a Action) error {
	if a.ID == "" || a.Perform == nil {
		return errors.New("action needs an id and a function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrActionExists, a.ID)
	}
	r.actions[a.ID] = a
	return nil
}

// Remove deletes the action id.
func (r *Actions) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.actions[id]; !ok {
		return false
	}
	delete(r.actions, id)
	return true
}

// Get returns the action id.
func (r *Actions) Get(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// Invoke runs the action named by b. Unknown actions are not handled.
func (r *Actions) Invoke(b macro.ActionBinding) bool {
	a, ok := r.Get(b.Action)
	if !ok {
		return false
	}
	return a.Perform(b)
}

// ActionPerformed lets the registry serve as a keyboard action listener.
func (r *Actions) ActionPerformed(b macro.ActionBinding) bool { return r.Invoke(b) }

// List returns the registered ids in order.
func (r *Actions) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.actions))
	for id := range r.actions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
