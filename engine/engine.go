// Package engine turns key transitions into macro effects. It tracks the
// state of every key of a device, matches activation sequences against the
// active bank and runs the repeat-mode state machines.
package engine

import (
	"time"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

const (
	// DefaultHoldDelay is how long a key stays DOWN before it becomes HELD.
	DefaultHoldDelay = 2 * time.Second
	// SimulatedInputDelay paces repeated virtual key presses.
	SimulatedInputDelay = 25 * time.Millisecond
	// DefaultRepeatInterval paces repeating macros without an explicit delay.
	DefaultRepeatInterval = 100 * time.Millisecond
)

// Emitter writes events to the virtual output devices.
type Emitter interface {
	Emit(target macro.TargetType, code keys.Code, value int32) error
	// Type presses and releases code without another writer interleaving.
	Type(target macro.TargetType, code keys.Code) error
}

// DesktopIO injects text into the desktop session.
type DesktopIO interface {
	TypeString(text string, press bool) error
}

// KeyListener observes every transition before (post=false) and after
// (post=true) dispatch. Returning true consumes the transition.
type KeyListener interface {
	HandleKey(code keys.Code, state keys.State, post bool) bool
}

// KeyListenerFunc adapts a function to KeyListener.
type KeyListenerFunc func(code keys.Code, state keys.State, post bool) bool

func (f KeyListenerFunc) HandleKey(code keys.Code, state keys.State, post bool) bool {
	return f(code, state, post)
}

// ActionListener handles a named action. It returns false when it did not
// handle the binding.
type ActionListener interface {
	ActionPerformed(b macro.ActionBinding) bool
}

// ActionListenerFunc adapts a function to ActionListener.
type ActionListenerFunc func(b macro.ActionBinding) bool

func (f ActionListenerFunc) ActionPerformed(b macro.ActionBinding) bool { return f(b) }

// Environment supplies the configuration dispatch runs against. It is
// queried on the fast queue for every transition.
type Environment interface {
	// ActiveBank is the bank macros are matched in, or nil.
	ActiveBank() *macro.Bank
	// Delays are the timing settings of the active profile.
	Delays() macro.Delays
}
