// Package keyboard provides the virtual keyboard driver.
package keyboard

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
	virtual.RegisterDriver("keyboard", virtual.DriverFunc(Open))
}

// Backend is the part of uinput.Keyboard the driver uses.
type Backend interface {
	KeyDown(key int) error
	KeyUp(key int) error
	Close() error
}

// Keyboard is a uinput keyboard that remembers which keys it holds down.
type Keyboard struct {
	dev     Backend
	state   InputState
	stateMu sync.Mutex
}

// Open creates the uinput keyboard.
func Open(cfg virtual.Config) (virtual.Device, error) {
	dev, err := uinput.CreateKeyboard(cfg.Path, []byte(cfg.Name))
	if err != nil {
		return nil, err
	}
	return New(dev), nil
}

// New wraps a keyboard backend.
func New(dev Backend) *Keyboard {
	return &Keyboard{dev: dev}
}

// Emit presses (value != 0) or releases (value 0) an EV_KEY code.
func (k *Keyboard) Emit(code keys.Code, value int32) error {
	if code.Type != evdev.EV_KEY {
		return fmt.Errorf("%s: %w", code, virtual.ErrUnsupportedKey)
	}
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	c := uint16(code.Code)
	if value == 0 {
		k.state.Release(c)
		return k.dev.KeyUp(int(c))
	}
	k.state.Press(c)
	return k.dev.KeyDown(int(c))
}

// InputState returns a snapshot of the held keys.
func (k *Keyboard) InputState() InputState {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	return k.state
}

// Close releases every held key and destroys the device.
func (k *Keyboard) Close() error {
	k.stateMu.Lock()
	defer k.stateMu.Unlock()
	var errs []error
	for _, c := range k.state.Pressed() {
		errs = append(errs, k.dev.KeyUp(int(c)))
		k.state.Release(c)
	}
	errs = append(errs, k.dev.Close())
	return errors.Join(errs...)
}
