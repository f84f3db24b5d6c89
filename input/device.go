// Package input reads physical input devices through evdev and feeds their
// events to the macro engine.
package input

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/keys"
)

// Info identifies an input device node.
type Info struct {
	Path string
	Name string
}

// List returns the input device nodes of the system.
func List() ([]Info, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	out := make([]Info, 0, len(paths))
	for _, p := range paths {
		out = append(out, Info{Path: p.Path, Name: p.Name})
	}
	return out, nil
}

// Find resolves a device given by node path, by name (case-insensitive) or
// by UID.
func Find(id string) (string, error) {
	if strings.HasPrefix(id, "/") {
		return id, nil
	}
	infos, err := List()
	if err != nil {
		return "", err
	}
	for _, in := range infos {
		if strings.EqualFold(in.Name, id) {
			return in.Path, nil
		}
	}
	for _, in := range infos {
		d, err := Open(in.Path)
		if err != nil {
			continue
		}
		uid := d.UID()
		_ = d.Close()
		if uid == id {
			return in.Path, nil
		}
	}
	return "", fmt.Errorf("input device %q not found", id)
}

// Device is an opened evdev node.
type Device struct {
	path string
	name string
	uid  string
	dev  *evdev.InputDevice

	closeOnce sync.Once
	closeErr  error
}

// Open opens the evdev node at path.
func Open(path string) (*Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	name, err := dev.Name()
	if err != nil {
		name = filepath.Base(path)
	}
	d := &Device{path: path, name: name, dev: dev}
	if id, err := dev.InputID(); err == nil {
		d.uid = UID(id.BusType, id.Vendor, id.Product, id.Version, path)
	} else {
		d.uid = UID(0, 0, 0, 0, path)
	}
	return d, nil
}

// UID builds the stable identifier of a device. Profiles are stored under
// it.
func UID(bus, vendor, product, version uint16, path string) string {
	return fmt.Sprintf("%04x:%04x:%04x:%04x:%s", bus, vendor, product, version, filepath.Base(path))
}

func (d *Device) Path() string { return d.path }
func (d *Device) Name() string { return d.name }
func (d *Device) UID() string  { return d.uid }

// Grab takes exclusive access so events no longer reach other readers.
func (d *Device) Grab() error {
	return d.dev.Grab()
}

// Capabilities lists the key, button, axis and relative codes the device
// reports.
func (d *Device) Capabilities() []keys.Code {
	var out []keys.Code
	for _, t := range d.dev.CapableTypes() {
		switch t {
		case evdev.EV_KEY, evdev.EV_ABS, evdev.EV_REL:
		default:
			continue
		}
		for _, c := range d.dev.CapableEvents(t) {
			out = append(out, keys.Code{Type: t, Code: c})
		}
	}
	slices.SortFunc(out, func(a, b keys.Code) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return out
}

// SupportedKeys lists the EV_KEY codes of the device. These are the codes
// that may activate macros.
func (d *Device) SupportedKeys() []keys.Code {
	var out []keys.Code
	for _, c := range d.Capabilities() {
		if c.IsKey() {
			out = append(out, c)
		}
	}
	return out
}

// HasJoystick reports whether the device has absolute axes.
func (d *Device) HasJoystick() bool {
	return slices.Contains(d.dev.CapableTypes(), evdev.EV_ABS)
}

// ReadOne blocks for the next event.
func (d *Device) ReadOne() (keys.Event, error) {
	ev, err := d.dev.ReadOne()
	if err != nil {
		return keys.Event{}, err
	}
	return keys.Event{Code: keys.Code{Type: ev.Type, Code: ev.Code}, Value: ev.Value}, nil
}

// Close releases the device. It is safe to call more than once.
func (d *Device) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.dev.Close() })
	return d.closeErr
}

// Reader is a source of input events.
type Reader interface {
	ReadOne() (keys.Event, error)
	Close() error
}

// Pump reads events from r into handle until ctx is done or reading fails.
// Cancelling ctx closes r to unblock the read.
func Pump(ctx context.Context, r Reader, handle func(keys.Event)) error {
	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()
	for {
		ev, err := r.ReadOne()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		handle(ev)
	}
}
