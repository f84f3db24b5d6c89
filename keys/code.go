// Package keys describes input event codes, key transitions and the
// activation sequences macros are bound to.
package keys

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holoplot/go-evdev"
)

// Code identifies a single input event code on a device, e.g. EV_KEY/KEY_A.
type Code struct {
	Type evdev.EvType
	Code evdev.EvCode
}

// Key returns an EV_KEY code.
func Key(c evdev.EvCode) Code { return Code{Type: evdev.EV_KEY, Code: c} }

// Abs returns an EV_ABS code.
func Abs(c evdev.EvCode) Code { return Code{Type: evdev.EV_ABS, Code: c} }

// Rel returns an EV_REL code.
func Rel(c evdev.EvCode) Code { return Code{Type: evdev.EV_REL, Code: c} }

var toName = map[evdev.EvType]map[evdev.EvCode]string{
	evdev.EV_SYN: evdev.SYNToString,
	evdev.EV_KEY: evdev.KEYToString,
	evdev.EV_REL: evdev.RELToString,
	evdev.EV_ABS: evdev.ABSToString,
	evdev.EV_MSC: evdev.MSCToString,
}

var fromName = map[string]struct {
	t     evdev.EvType
	codes map[string]evdev.EvCode
}{
	"SYN": {evdev.EV_SYN, evdev.SYNFromString},
	"KEY": {evdev.EV_KEY, evdev.KEYFromString},
	"BTN": {evdev.EV_KEY, evdev.KEYFromString},
	"REL": {evdev.EV_REL, evdev.RELFromString},
	"ABS": {evdev.EV_ABS, evdev.ABSFromString},
	"MSC": {evdev.EV_MSC, evdev.MSCFromString},
}

var typePrefix = map[evdev.EvType]string{
	evdev.EV_SYN: "SYN",
	evdev.EV_KEY: "KEY",
	evdev.EV_REL: "REL",
	evdev.EV_ABS: "ABS",
	evdev.EV_MSC: "MSC",
}

// Name returns the kernel name of the code, e.g. KEY_A or ABS_X. Codes the
// kernel tables do not know are rendered as <TYPE>_<number>.
func (c Code) Name() string {
	if names, ok := toName[c.Type]; ok {
		if n, ok := names[c.Code]; ok {
			return n
		}
	}
	prefix, ok := typePrefix[c.Type]
	if !ok {
		prefix = "EV" + strconv.Itoa(int(c.Type))
	}
	return prefix + "_" + strconv.Itoa(int(c.Code))
}

func (c Code) String() string { return c.Name() }

// IsKey reports whether the code is an EV_KEY code (keys and buttons).
func (c Code) IsKey() bool { return c.Type == evdev.EV_KEY }

// IsButton reports whether the code is a pointer, joystick or gamepad button
// rather than a keyboard key.
func (c Code) IsButton() bool {
	if c.Type != evdev.EV_KEY {
		return false
	}
	switch {
	case c.Code >= 0x100 && c.Code < 0x160:
		return true
	case c.Code >= evdev.BTN_DPAD_UP && c.Code <= evdev.BTN_DPAD_RIGHT:
		return true
	case c.Code >= 0x2c0 && c.Code <= 0x2e7:
		return true
	}
	return false
}

// Parse resolves a kernel code name such as KEY_A, BTN_LEFT or ABS_X. Numeric
// forms produced by Name for unknown codes are accepted as well.
func Parse(name string) (Code, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	prefix, rest, ok := strings.Cut(n, "_")
	if !ok {
		return Code{}, fmt.Errorf("invalid key name %q", name)
	}
	table, ok := fromName[prefix]
	if !ok {
		return Code{}, fmt.Errorf("unsupported event type in %q", name)
	}
	if c, ok := table.codes[n]; ok {
		return Code{Type: table.t, Code: c}, nil
	}
	if num, err := strconv.Atoi(rest); err == nil && num >= 0 {
		return Code{Type: table.t, Code: evdev.EvCode(num)}, nil
	}
	return Code{}, fmt.Errorf("unknown key %q", name)
}

// MustParse is Parse for static tables and tests.
func MustParse(name string) Code {
	c, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Code) MarshalText() ([]byte, error) { return []byte(c.Name()), nil }

func (c *Code) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Less orders codes by type, then code.
func (c Code) Less(o Code) bool {
	if c.Type != o.Type {
		return c.Type < o.Type
	}
	return c.Code < o.Code
}

// Event is a raw event read from a physical device.
type Event struct {
	Code  Code
	Value int32
}
