// Package window watches which application owns the focused window.
package window

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-vgo/robotgo"
)

// DefaultInterval is how often the active window is sampled.
const DefaultInterval = 500 * time.Millisecond

// Application is the owner of the focused window.
type Application struct {
	// Name is the process name, used for profile matching.
	Name  string
	Title string
	PID   int
}

// IsZero reports whether no application is known.
func (a Application) IsZero() bool { return a == Application{} }

// Source samples the active application.
type Source interface {
	Active() (Application, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Application, error)

func (f SourceFunc) Active() (Application, error) { return f() }

// Robotgo samples the active X11 window.
type Robotgo struct{}

func (Robotgo) Active() (Application, error) {
	pid := int(robotgo.GetPid())
	name, err := robotgo.FindName(pid)
	if err != nil {
		return Application{}, err
	}
	return Application{Name: name, Title: robotgo.GetTitle(), PID: pid}, nil
}

// Listener is told when the active application changes.
type Listener interface {
	ActiveChanged(old, new Application)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(old, new Application)

func (f ListenerFunc) ActiveChanged(old, new Application) { f(old, new) }

// Monitor polls a Source and notifies listeners on changes.
type Monitor struct {
	src      Source
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	active    Application
	listeners []Listener
	failing   bool
}

// NewMonitor creates a Monitor. A zero interval uses DefaultInterval.
func NewMonitor(src Source, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{src: src, interval: interval, logger: logger.With("component", "window")}
}

// AddListener registers l.
func (m *Monitor) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Active returns the last sampled application.
func (m *Monitor) Active() Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Poll samples the source once and notifies listeners if the application
// changed. Sampling errors are logged once until sampling recovers.
func (m *Monitor) Poll() {
	app, err := m.src.Active()
	m.mu.Lock()
	if err != nil {
		if !m.failing {
			m.logger.Warn("cannot determine the active window", "error", err)
		}
		m.failing = true
		m.mu.Unlock()
		return
	}
	m.failing = false
	old := m.active
	if old == app {
		m.mu.Unlock()
		return
	}
	m.active = app
	ls := slices.Clone(m.listeners)
	m.mu.Unlock()

	m.logger.Debug("active application changed", "old", old.Name, "new", app.Name, "title", app.Title)
	for _, l := range ls {
		l.ActiveChanged(old, app)
	}
}

// Run polls until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.Poll()
		}
	}
}
