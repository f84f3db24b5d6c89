// Package macro holds the macro configuration model: macros, the banks that
// group them and the profiles that own the banks.
package macro

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Alia5/macrokey/keys"
)

const (
	// DefaultRepeatDelay marks a macro without an explicit repeat delay.
	DefaultRepeatDelay = -1.0
	// PassthroughValue makes a remap emit the raw value of the triggering
	// event instead of a fixed one.
	PassthroughValue = math.MinInt32
)

// Kind is the effect family of a macro, derived from its target type.
type Kind uint8

const (
	KindNoop Kind = iota
	KindRemap
	KindCommand
	KindSimple
	KindScript
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindRemap:
		return "remap"
	case KindCommand:
		return "command"
	case KindSimple:
		return "simple"
	case KindScript:
		return "script"
	case KindAction:
		return "action"
	default:
		return "noop"
	}
}

// Macro binds an activation sequence to an effect. Only the fields of the
// variant selected by Type are meaningful.
type Macro struct {
	ActivatedBy keys.Sequence
	Name        string
	RepeatDelay float64
	RepeatMode  RepeatMode
	Type        TargetType

	// remap
	Code        keys.Code
	Value       int32
	Passthrough bool

	// command
	Command   string
	Arguments []string

	// simple
	Text string

	// script
	Script []string

	// action
	Action string
}

func newMacro(seq keys.Sequence, t TargetType) *Macro {
	return &Macro{
		ActivatedBy: seq.Clone(),
		RepeatDelay: DefaultRepeatDelay,
		RepeatMode:  RepeatWhileHeld,
		Type:        t,
	}
}

// NewRemap creates a macro that drives code on the target virtual device.
func NewRemap(seq keys.Sequence, target TargetType, code keys.Code) *Macro {
	m := newMacro(seq, target)
	m.Code = code
	return m
}

// NewCommand creates a macro that runs an external command.
func NewCommand(seq keys.Sequence, command string, args ...string) *Macro {
	m := newMacro(seq, TargetCommand)
	m.Command = command
	m.Arguments = slices.Clone(args)
	return m
}

// NewSimple creates a macro that types literal text.
func NewSimple(seq keys.Sequence, text string) *Macro {
	m := newMacro(seq, TargetSimple)
	m.Text = text
	return m
}

// NewScript creates a macro that runs a script.
func NewScript(seq keys.Sequence, lines ...string) *Macro {
	m := newMacro(seq, TargetScript)
	m.Script = slices.Clone(lines)
	return m
}

// NewAction creates a macro that invokes a named action.
func NewAction(seq keys.Sequence, action string) *Macro {
	m := newMacro(seq, TargetAction)
	m.Action = action
	return m
}

// NewNoop creates a macro that swallows its activation sequence.
func NewNoop(seq keys.Sequence) *Macro {
	return newMacro(seq, TargetNothing)
}

// Kind derives the effect family from the target type.
func (m *Macro) Kind() Kind {
	switch m.Type {
	case TargetKeyboard, TargetMouse, TargetJoystick, TargetDigitalJoystick:
		return KindRemap
	case TargetCommand:
		return KindCommand
	case TargetSimple:
		return KindSimple
	case TargetScript:
		return KindScript
	case TargetAction:
		return KindAction
	}
	return KindNoop
}

// IsUInput reports whether the macro drives a virtual device.
func (m *Macro) IsUInput() bool { return m.Type.IsUInput() }

// State is the transition the macro is activated by.
func (m *Macro) State() keys.State { return m.ActivatedBy.State }

// UsesRawValue reports whether a remap forwards the triggering value.
func (m *Macro) UsesRawValue() bool { return m.Passthrough || m.Value == PassthroughValue }

// HasRepeatDelay reports whether an explicit repeat delay was configured.
func (m *Macro) HasRepeatDelay() bool { return m.RepeatDelay != DefaultRepeatDelay }

// RepeatInterval returns the configured delay, or def when none is set.
func (m *Macro) RepeatInterval(def time.Duration) time.Duration {
	if !m.HasRepeatDelay() {
		return def
	}
	return time.Duration(m.RepeatDelay * float64(time.Second))
}

// DisplayName is the macro name, falling back to its activation sequence.
func (m *Macro) DisplayName() string {
	if strings.TrimSpace(m.Name) != "" {
		return m.Name
	}
	return m.ActivatedBy.String()
}

// Clone returns a deep copy.
func (m *Macro) Clone() *Macro {
	c := *m
	c.ActivatedBy = m.ActivatedBy.Clone()
	c.Arguments = slices.Clone(m.Arguments)
	c.Script = slices.Clone(m.Script)
	return &c
}

// ActionBinding ties a named action to the key sequence that triggered it on
// a device.
type ActionBinding struct {
	Device   string
	Action   string
	Sequence keys.Sequence
}

// NewActionBinding builds a binding with a private copy of seq.
func NewActionBinding(device, action string, seq keys.Sequence) ActionBinding {
	return ActionBinding{Device: device, Action: action, Sequence: seq.Clone()}
}

func (a ActionBinding) Keys() []keys.Code { return a.Sequence.Codes }

func (a ActionBinding) State() keys.State { return a.Sequence.State }

// Delays are the profile timing settings carried by an execution.
type Delays struct {
	Fixed   bool
	Send    bool
	Press   time.Duration
	Release time.Duration
}

// PressDelay is the pause after a press, applied only with fixed delays.
func (d Delays) PressDelay() time.Duration {
	if d.Fixed {
		return d.Press
	}
	return 0
}

// ReleaseDelay is the pause after a release, applied only with fixed delays.
func (d Delays) ReleaseDelay() time.Duration {
	if d.Fixed {
		return d.Release
	}
	return 0
}
