package macro

import (
	"fmt"
	"strings"

	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/keys"
)

// TargetType selects what a macro does, and for remaps, which virtual device
// receives the output.
type TargetType uint8

const (
	TargetNothing TargetType = iota
	TargetAction
	TargetCommand
	TargetDigitalJoystick
	TargetJoystick
	TargetKeyboard
	TargetMouse
	TargetScript
	TargetSimple
)

var targetNames = [...]string{
	TargetNothing:         "NOTHING",
	TargetAction:          "ACTION",
	TargetCommand:         "COMMAND",
	TargetDigitalJoystick: "DIGITAL_JOYSTICK",
	TargetJoystick:        "JOYSTICK",
	TargetKeyboard:        "KEYBOARD",
	TargetMouse:           "MOUSE",
	TargetScript:          "SCRIPT",
	TargetSimple:          "SIMPLE",
}

func (t TargetType) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("TargetType(%d)", t)
}

// ParseTargetType parses a target name case-insensitively.
func ParseTargetType(s string) (TargetType, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range targetNames {
		if n == u {
			return TargetType(i), nil
		}
	}
	return TargetNothing, fmt.Errorf("unknown target type %q", s)
}

// IsUInput reports whether the target is a virtual input device.
func (t TargetType) IsUInput() bool {
	switch t {
	case TargetKeyboard, TargetMouse, TargetJoystick, TargetDigitalJoystick:
		return true
	}
	return false
}

// UInputTargets lists the virtual device targets.
func UInputTargets() []TargetType {
	return []TargetType{TargetKeyboard, TargetMouse, TargetJoystick, TargetDigitalJoystick}
}

// ForEvent infers the virtual device an unhandled event is forwarded to from
// its native type: axes go to the joystick, relative motion and buttons to
// the mouse, everything else with EV_KEY to the keyboard.
func ForEvent(c keys.Code) (TargetType, bool) {
	switch c.Type {
	case evdev.EV_ABS:
		return TargetJoystick, true
	case evdev.EV_REL:
		return TargetMouse, true
	case evdev.EV_KEY:
		if c.IsButton() {
			if c.Code >= evdev.BTN_MISC && c.Code < evdev.BTN_JOYSTICK {
				return TargetMouse, true
			}
			return TargetJoystick, true
		}
		return TargetKeyboard, true
	}
	return TargetNothing, false
}

func (t TargetType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TargetType) UnmarshalText(b []byte) error {
	v, err := ParseTargetType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// RepeatMode controls what happens while an activation sequence stays held.
type RepeatMode uint8

const (
	RepeatWhileHeld RepeatMode = iota
	RepeatNone
	RepeatToggle
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatNone:
		return "NONE"
	case RepeatToggle:
		return "TOGGLE"
	default:
		return "WHILE_HELD"
	}
}

// ParseRepeatMode parses NONE, TOGGLE or WHILE_HELD (case-insensitive).
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WHILE_HELD", "":
		return RepeatWhileHeld, nil
	case "NONE":
		return RepeatNone, nil
	case "TOGGLE":
		return RepeatToggle, nil
	}
	return RepeatWhileHeld, fmt.Errorf("unknown repeat mode %q", s)
}

func (r RepeatMode) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RepeatMode) UnmarshalText(b []byte) error {
	v, err := ParseRepeatMode(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
