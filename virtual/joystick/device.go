// Package joystick provides the virtual joystick drivers. The analog and
// the digital joystick targets share the implementation and differ only in
// their product id.
package joystick

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bendahl/uinput"
	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/virtual"
)

func init() {
	virtual.RegisterDriver("joystick", virtual.DriverFunc(Open))
	virtual.RegisterDriver("digital_joystick", virtual.DriverFunc(Open))
}

// Backend is the part of uinput.Gamepad the driver uses.
type Backend interface {
	ButtonDown(key int) error
	ButtonUp(key int) error
	LeftStickMoveX(value float32) error
	LeftStickMoveY(value float32) error
	RightStickMoveX(value float32) error
	RightStickMoveY(value float32) error
	Close() error
}

// Joystick is a uinput gamepad driven with evdev style events. D-pad
// buttons move the left stick to its limits.
type Joystick struct {
	dev     Backend
	state   InputState
	stateMu sync.Mutex
}

// Open creates the uinput gamepad and centers its sticks.
func Open(cfg virtual.Config) (virtual.Device, error) {
	dev, err := uinput.CreateGamepad(cfg.Path, []byte(cfg.Name), cfg.Vendor, cfg.Product)
	if err != nil {
		return nil, err
	}
	j := New(dev)
	if err := j.Center(); err != nil {
		_ = dev.Close()
		return nil, err
	}
	return j, nil
}

// New wraps a gamepad backend.
func New(dev Backend) *Joystick {
	return &Joystick{dev: dev}
}

// Center moves every axis to the center.
func (j *Joystick) Center() error {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return errors.Join(
		j.axis(evdev.ABS_X, virtual.JoystickCenter),
		j.axis(evdev.ABS_Y, virtual.JoystickCenter),
		j.axis(evdev.ABS_RX, virtual.JoystickCenter),
		j.axis(evdev.ABS_RY, virtual.JoystickCenter),
	)
}

// Emit writes a button or an absolute axis event.
func (j *Joystick) Emit(code keys.Code, value int32) error {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()

	switch code.Type {
	case evdev.EV_SYN:
		// uinput reports every write
		return nil
	case evdev.EV_ABS:
		return j.axis(code.Code, value)
	case evdev.EV_KEY:
		if axis, v, ok := dpad(code.Code, value); ok {
			return j.axis(axis, v)
		}
		if !j.state.setButton(uint16(code.Code), value != 0) {
			break
		}
		if value == 0 {
			return j.dev.ButtonUp(int(code.Code))
		}
		return j.dev.ButtonDown(int(code.Code))
	}
	return fmt.Errorf("%s: %w", code, virtual.ErrUnsupportedKey)
}

// dpad translates a d-pad button to a left stick position.
func dpad(code evdev.EvCode, value int32) (evdev.EvCode, int32, bool) {
	pos := virtual.JoystickCenter
	switch code {
	case evdev.BTN_DPAD_UP, evdev.BTN_DPAD_LEFT:
		if value != 0 {
			pos = virtual.JoystickMin
		}
	case evdev.BTN_DPAD_DOWN, evdev.BTN_DPAD_RIGHT:
		if value != 0 {
			pos = virtual.JoystickMax
		}
	default:
		return 0, 0, false
	}
	if code == evdev.BTN_DPAD_UP || code == evdev.BTN_DPAD_DOWN {
		return evdev.ABS_Y, pos, true
	}
	return evdev.ABS_X, pos, true
}

func (j *Joystick) axis(code evdev.EvCode, value int32) error {
	value = min(max(value, virtual.JoystickMin), virtual.JoystickMax)
	f := float32(value) / float32(virtual.JoystickMax)
	switch code {
	case evdev.ABS_X:
		j.state.X = value
		return j.dev.LeftStickMoveX(f)
	case evdev.ABS_Y:
		j.state.Y = value
		return j.dev.LeftStickMoveY(f)
	case evdev.ABS_RX:
		j.state.RX = value
		return j.dev.RightStickMoveX(f)
	case evdev.ABS_RY:
		j.state.RY = value
		return j.dev.RightStickMoveY(f)
	}
	return fmt.Errorf("%s: %w", keys.Abs(code), virtual.ErrUnsupportedKey)
}

// InputState returns a snapshot of the joystick state.
func (j *Joystick) InputState() InputState {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	return j.state
}

// Close releases held buttons and destroys the device.
func (j *Joystick) Close() error {
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	var errs []error
	for _, c := range j.state.Pressed() {
		errs = append(errs, j.dev.ButtonUp(int(c)))
	}
	j.state = InputState{}
	errs = append(errs, j.dev.Close())
	return errors.Join(errs...)
}
