// Package virtual writes events to virtual input devices. Each output target
// is backed by a driver registered by name, normally from a driver package's
// init function.
package virtual

import (
	"slices"
	"strings"
	"sync"

	"github.com/Alia5/macrokey/keys"
)

// Device is an opened virtual input device.
type Device interface {
	Emit(code keys.Code, value int32) error
	Close() error
}

// Config describes the virtual device a driver creates.
type Config struct {
	// Path of the uinput node.
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
}

// Driver creates virtual devices of one kind.
type Driver interface {
	Open(cfg Config) (Device, error)
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(cfg Config) (Device, error)

func (f DriverFunc) Open(cfg Config) (Device, error) { return f(cfg) }

var (
	drivers   = make(map[string]Driver)
	driversMu sync.RWMutex
)

// RegisterDriver registers a driver. The name is case-insensitive.
func RegisterDriver(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[strings.ToLower(name)] = d
}

// GetDriver returns the driver registered under name, or nil.
func GetDriver(name string) Driver {
	driversMu.RLock()
	defer driversMu.RUnlock()
	return drivers[strings.ToLower(name)]
}

// ListDrivers returns the registered driver names, sorted.
func ListDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
