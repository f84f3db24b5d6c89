// Package mouse provides the virtual mouse driver.
package mouse

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
	virtual.RegisterDriver("mouse", virtual.DriverFunc(Open))
}

// Backend is the part of uinput.Mouse the driver uses.
type Backend interface {
	Move(x, y int32) error
	Wheel(horizontal bool, delta int32) error
	LeftPress() error
	LeftRelease() error
	RightPress() error
	RightRelease() error
	MiddlePress() error
	MiddleRelease() error
	Close() error
}

// Mouse is a three button uinput mouse with both wheels.
type Mouse struct {
	dev     Backend
	state   InputState
	stateMu sync.Mutex
}

// Open creates the uinput mouse.
func Open(cfg virtual.Config) (virtual.Device, error) {
	dev, err := uinput.CreateMouse(cfg.Path, []byte(cfg.Name))
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

// New wraps a mouse backend.
func New(dev Backend) *Mouse {
	return &Mouse{dev: dev}
}

type button struct {
	bit            uint8
	press, release func(Backend) error
}

var buttons = map[evdev.EvCode]button{
	evdev.BTN_LEFT:   {ButtonLeft, Backend.LeftPress, Backend.LeftRelease},
	evdev.BTN_RIGHT:  {ButtonRight, Backend.RightPress, Backend.RightRelease},
	evdev.BTN_MIDDLE: {ButtonMiddle, Backend.MiddlePress, Backend.MiddleRelease},
}

// Emit writes a button or a relative motion event.
func (m *Mouse) Emit(code keys.Code, value int32) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	switch code.Type {
	case evdev.EV_KEY:
		b, ok := buttons[code.Code]
		if !ok {
			break
		}
		if value == 0 {
			m.state.Buttons &^= b.bit
			return b.release(m.dev)
		}
		m.state.Buttons |= b.bit
		return b.press(m.dev)

	case evdev.EV_REL:
		switch code.Code {
		case evdev.REL_X:
			m.state.DX += value
			return m.dev.Move(value, 0)
		case evdev.REL_Y:
			m.state.DY += value
			return m.dev.Move(0, value)
		case evdev.REL_WHEEL:
			m.state.Wheel += value
			return m.dev.Wheel(false, value)
		case evdev.REL_HWHEEL:
			m.state.Pan += value
			return m.dev.Wheel(true, value)
		}
	}
	return fmt.Errorf("%s: %w", code, virtual.ErrUnsupportedKey)
}

// InputState returns a snapshot of the mouse state.
func (m *Mouse) InputState() InputState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

// Close releases held buttons and destroys the device.
func (m *Mouse) Close() error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	var errs []error
	for _, b := range buttons {
		if m.state.Buttons&b.bit != 0 {
			errs = append(errs, b.release(m.dev))
		}
	}
	m.state = InputState{}
	errs = append(errs, m.dev.Close())
	return errors.Join(errs...)
}
