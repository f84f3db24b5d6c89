package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Alia5/macrokey/desktop"
	"github.com/Alia5/macrokey/engine"
	"github.com/Alia5/macrokey/input"
	"github.com/Alia5/macrokey/internal/configpaths"
	"github.com/Alia5/macrokey/internal/log"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/storage"
	"github.com/Alia5/macrokey/system"
	"github.com/Alia5/macrokey/virtual"
	"github.com/Alia5/macrokey/window"
)

var ErrAlreadyRunning = errors.New("another daemon holds the lock")

type Daemon struct {
	Devices     []string      `name:"device" short:"d" help:"Input device to grab, by node path, name or UID (repeatable)" env:"MACROKEY_DEVICES"`
	Storage     string        `help:"Profile storage directory (defaults to the devices dir in the user config dir)" type:"path" env:"MACROKEY_STORAGE"`
	LockFile    string        `help:"Single instance lock file" type:"path" env:"MACROKEY_LOCK_FILE"`
	UInput      string        `name:"uinput" help:"uinput device node" default:"/dev/uinput" env:"MACROKEY_UINPUT"`
	Desktop     string        `help:"Text injection backend" enum:"x11,uinput,none" default:"x11" env:"MACROKEY_DESKTOP"`
	Joystick    string        `help:"What device joysticks drive" enum:"keys,joystick,digital_joystick,mouse" default:"keys" env:"MACROKEY_JOYSTICK"`
	Calibration int32         `help:"Joystick deadzone around the center" default:"20"`
	HoldDelay   time.Duration `help:"How long a key stays down before it is held" default:"2s" env:"MACROKEY_HOLD_DELAY"`
	Banks       int           `help:"Number of banks the bank actions switch between" default:"10"`
	Grab        bool          `help:"Take exclusive access of the devices" default:"true" negatable:""`
	Notify      bool          `help:"Show desktop notifications on bank changes" default:"true" negatable:""`
	Window      bool          `help:"Switch profiles by the active application" default:"true" negatable:""`
	WindowPoll  time.Duration `help:"Active application polling interval" default:"500ms"`
	Watch       bool          `help:"Reload profiles edited on disk" default:"true" negatable:""`
}

// Run is called by Kong when the daemon command is executed.
func (d *Daemon) Run(logger *slog.Logger, events log.EventLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return d.Start(ctx, logger, events)
}

// Start runs the daemon until ctx is done or every device stopped.
func (d *Daemon) Start(ctx context.Context, logger *slog.Logger, events log.EventLogger) error {
	if len(d.Devices) == 0 {
		return errors.New("no input devices given; use --device")
	}
	mode, err := joystickMode(d.Joystick)
	if err != nil {
		return err
	}

	lockPath := d.LockFile
	if lockPath == "" {
		lockPath = configpaths.DefaultLockPath()
	}
	unlock, err := acquireLock(lockPath)
	if err != nil {
		return err
	}
	defer unlock()

	root := d.Storage
	if root == "" {
		if root, err = configpaths.DefaultStorageDir(); err != nil {
			return fmt.Errorf("failed to resolve storage dir: %w", err)
		}
	}
	store, err := storage.NewJSON(root, logger)
	if err != nil {
		return err
	}
	logger.Info("Starting macrokey daemon", "storage", root, "devices", strings.Join(d.Devices, ","))

	out := virtual.NewOutput(virtual.OutputConfig{Path: d.UInput, Logger: logger, Events: events})
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("failed to close virtual devices", "error", err)
		}
	}()
	if err := out.Open(macro.UInputTargets()...); err != nil {
		return fmt.Errorf("failed to create virtual devices: %w", err)
	}

	dsk, err := desktop.New(d.Desktop, logger)
	if err != nil {
		return err
	}

	var notifier system.Notifier
	if d.Notify {
		notifier = system.Beeep{}
	}
	sys := system.New(system.Config{
		Store:     store,
		Output:    out,
		Desktop:   dsk,
		Notifier:  notifier,
		HoldDelay: d.HoldDelay,
		Logger:    logger,
	})
	defer sys.Close()

	var opened []*input.Device
	defer func() {
		for _, dev := range opened {
			_ = dev.Close()
		}
	}()
	for _, id := range d.Devices {
		dev, err := d.openDevice(id)
		if err != nil {
			return err
		}
		opened = append(opened, dev)
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.Watch {
		w, err := storage.NewWatcher(root, logger)
		if err != nil {
			logger.Warn("profile changes on disk will not be picked up", "error", err)
		} else {
			wg.Go(func() {
				if err := w.Run(ctx, sys.HandleChange); err != nil {
					logger.Error("storage watcher stopped", "error", err)
				}
			})
		}
	}

	if d.Window {
		mon := window.NewMonitor(window.Robotgo{}, d.WindowPoll, logger)
		mon.AddListener(sys)
		wg.Go(func() {
			if err := mon.Run(ctx); err != nil {
				logger.Error("window monitor stopped", "error", err)
			}
		})
	}

	var devWG sync.WaitGroup
	errCh := make(chan error, len(opened))
	for _, dev := range opened {
		kb, err := sys.AddDevice(system.Device{
			UID:           dev.UID(),
			Name:          dev.Name(),
			Banks:         d.Banks,
			SupportedKeys: dev.SupportedKeys(),
		})
		if err != nil {
			return fmt.Errorf("failed to register %s: %w", dev.Name(), err)
		}
		devWG.Go(func() {
			errCh <- d.serve(ctx, sys, dev, kb, out, mode, logger, events)
		})
	}

	devWG.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		if err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info("macrokey daemon stopped")
	return errors.Join(errs...)
}

func (d *Daemon) openDevice(id string) (*input.Device, error) {
	path, err := input.Find(id)
	if err != nil {
		return nil, err
	}
	dev, err := input.Open(path)
	if err != nil {
		return nil, err
	}
	if d.Grab {
		if err := dev.Grab(); err != nil {
			_ = dev.Close()
			return nil, fmt.Errorf("failed to grab %s: %w", path, err)
		}
	}
	return dev, nil
}

// serve pumps the events of one device until it fails or ctx is done.
func (d *Daemon) serve(ctx context.Context, sys *system.System, dev *input.Device, kb *engine.Keyboard, out *virtual.Output, mode macro.TargetType, logger *slog.Logger, events log.EventLogger) error {
	logger = logger.With("device", dev.Name(), "uid", dev.UID())
	fwd := input.NewForwarder(input.ForwarderConfig{
		Device:      dev.UID(),
		Mode:        mode,
		Calibration: d.Calibration,
		Output:      out,
		Sink:        kb,
		Queue:       sys.Fast(),
		Logger:      logger,
		Events:      events,
	})
	defer fwd.Close()
	defer func() {
		if err := sys.RemoveDevice(dev.UID()); err != nil {
			logger.Warn("failed to unregister device", "error", err)
		}
	}()

	logger.Info("device ready", "path", dev.Path())
	if err := input.Pump(ctx, dev, fwd.Event); err != nil {
		logger.Error("device stopped", "error", err)
		return fmt.Errorf("%s: %w", dev.Name(), err)
	}
	return nil
}

func joystickMode(s string) (macro.TargetType, error) {
	if s == "" || strings.EqualFold(s, "keys") {
		return macro.TargetNothing, nil
	}
	return macro.ParseTargetType(s)
}

// acquireLock takes an exclusive flock on path. The returned func releases
// it.
func acquireLock(path string) (func(), error) {
	if err := configpaths.EnsureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
