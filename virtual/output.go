package virtual

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Alia5/macrokey/internal/log"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

const (
	// DefaultPath is the uinput node.
	DefaultPath = "/dev/uinput"
	// Vendor is the USB vendor id of every virtual device.
	Vendor uint16 = 0xee55

	// Joystick axis range as written to the joystick targets.
	JoystickMin    int32 = -127
	JoystickMax    int32 = 127
	JoystickCenter int32 = 0
)

var (
	ErrNotOpen        = errors.New("virtual device not open")
	ErrUnknownTarget  = errors.New("target is not a virtual device")
	ErrNoDriver       = errors.New("no driver registered for target")
	ErrUnsupportedKey = errors.New("code not supported by virtual device")
)

var products = map[macro.TargetType]uint16{
	macro.TargetMouse:           1,
	macro.TargetJoystick:        2,
	macro.TargetKeyboard:        3,
	macro.TargetDigitalJoystick: 4,
}

// DriverName is the registry name of the driver backing target.
func DriverName(target macro.TargetType) string {
	return strings.ToLower(target.String())
}

// OutputConfig configures an Output.
type OutputConfig struct {
	// Path defaults to DefaultPath.
	Path string
	// Name prefixes the virtual device names.
	Name   string
	Logger *slog.Logger
	Events log.EventLogger
}

// Output owns one virtual device per target. Writes to a target are
// serialized; Type holds the target across press and release.
type Output struct {
	cfg OutputConfig

	mu      sync.RWMutex
	targets map[macro.TargetType]*target
}

type target struct {
	mu  sync.Mutex
	dev Device
}

// NewOutput creates an Output with no devices open.
func NewOutput(cfg OutputConfig) *Output {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Name == "" {
		cfg.Name = "macrokey"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = log.NewEvents(nil)
	}
	return &Output{cfg: cfg, targets: map[macro.TargetType]*target{}}
}

// Open creates the virtual devices for targets. Already open targets are
// left alone. Every target is attempted; the errors are joined.
func (o *Output) Open(targets ...macro.TargetType) error {
	var errs []error
	for _, t := range targets {
		if err := o.open(t); err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Output) open(t macro.TargetType) error {
	if !t.IsUInput() {
		return ErrUnknownTarget
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.targets[t]; ok {
		return nil
	}
	drv := GetDriver(DriverName(t))
	if drv == nil {
		return ErrNoDriver
	}
	dev, err := drv.Open(Config{
		Path:    o.cfg.Path,
		Name:    o.cfg.Name + " " + strings.ReplaceAll(DriverName(t), "_", " "),
		Vendor:  Vendor,
		Product: products[t],
	})
	if err != nil {
		return err
	}
	o.cfg.Logger.Info("virtual device opened", "target", t)
	o.targets[t] = &target{dev: dev}
	return nil
}

// IsOpen reports whether target has a device.
func (o *Output) IsOpen(t macro.TargetType) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.targets[t]
	return ok
}

func (o *Output) get(t macro.TargetType) (*target, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	tg, ok := o.targets[t]
	if !ok {
		return nil, fmt.Errorf("%s: %w", t, ErrNotOpen)
	}
	return tg, nil
}

// Emit writes one event to target.
func (o *Output) Emit(t macro.TargetType, code keys.Code, value int32) error {
	tg, err := o.get(t)
	if err != nil {
		return err
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return o.write(t, tg, code, value)
}

// Type presses and releases code on target without another writer
// interleaving.
func (o *Output) Type(t macro.TargetType, code keys.Code) error {
	tg, err := o.get(t)
	if err != nil {
		return err
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if err := o.write(t, tg, code, 1); err != nil {
		return err
	}
	return o.write(t, tg, code, 0)
}

func (o *Output) write(t macro.TargetType, tg *target, code keys.Code, value int32) error {
	o.cfg.Events.Log(false, DriverName(t), code, value)
	return tg.dev.Emit(code, value)
}

// Close closes every virtual device.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var errs []error
	for t, tg := range o.targets {
		tg.mu.Lock()
		if err := tg.dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t, err))
		}
		tg.mu.Unlock()
		delete(o.targets, t)
	}
	return errors.Join(errs...)
}
