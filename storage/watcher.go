package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a change seen on disk.
type ChangeKind uint8

const (
	ProfileChanged ChangeKind = iota
	ProfileRemoved
	// DeviceChanged covers the active, default and lock files of a device.
	DeviceChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ProfileRemoved:
		return "profile-removed"
	case DeviceChanged:
		return "device-changed"
	}
	return "profile-changed"
}

// Change is a modification of the store made by another process.
type Change struct {
	Kind    ChangeKind
	Device  string
	Profile string
}

// DefaultSettle is how long a file must be quiet before its change is
// reported.
const DefaultSettle = 200 * time.Millisecond

// Watcher reports changes under a store root.
type Watcher struct {
	root   string
	fs     *fsnotify.Watcher
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	pending map[Change]*time.Timer
}

// NewWatcher watches root and every device and profiles directory below it.
// Directories created later are picked up as they appear.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:    filepath.Clean(root),
		fs:      fw,
		logger:  logger.With("component", "storage-watcher"),
		settle:  DefaultSettle,
		pending: map[Change]*time.Timer{},
	}
	err = filepath.WalkDir(w.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && w.depth(p) <= 2 {
			return w.fs.Add(p)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// SetSettle changes the quiet period. Zero reports immediately.
func (w *Watcher) SetSettle(d time.Duration) { w.settle = d }

// depth is 0 for the root, 1 for a device dir, 2 for its profiles dir.
func (w *Watcher) depth(p string) int {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// Run delivers changes to fn until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	defer w.fs.Close()
	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev, fn)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("change events lost", "error", err)
				continue
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, fn func(Change)) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && w.depth(ev.Name) <= 2 {
			if err := w.fs.Add(ev.Name); err != nil {
				w.logger.Warn("cannot watch directory", "path", ev.Name, "error", err)
			}
			return
		}
	}
	c, ok := w.classify(ev)
	if !ok {
		return
	}
	w.logger.Debug("store change", "kind", c.Kind, "device", c.Device, "profile", c.Profile)
	w.deliver(c, fn)
}

func (w *Watcher) classify(ev fsnotify.Event) (Change, bool) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return Change{}, false
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return Change{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	name := parts[len(parts)-1]
	if strings.HasSuffix(name, tmpExt) {
		return Change{}, false
	}
	switch {
	case len(parts) == 2 && (name == activeFile || name == defaultFile || name == lockFile):
		return Change{Kind: DeviceChanged, Device: parts[0]}, true
	case len(parts) == 3 && parts[1] == profilesDir:
		id, isProfile := strings.CutSuffix(name, profileExt)
		if !isProfile {
			id, isProfile = strings.CutSuffix(name, activeBankExt)
			if !isProfile {
				id, isProfile = strings.CutSuffix(name, defaultBankExt)
			}
			if !isProfile {
				return Change{}, false
			}
			return Change{Kind: ProfileChanged, Device: parts[0], Profile: id}, true
		}
		kind := ProfileChanged
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			if _, err := os.Stat(ev.Name); err != nil {
				kind = ProfileRemoved
			}
		}
		return Change{Kind: kind, Device: parts[0], Profile: id}, true
	}
	return Change{}, false
}

// deliver coalesces bursts for the same file into one report.
func (w *Watcher) deliver(c Change, fn func(Change)) {
	if w.settle <= 0 {
		fn(c)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[c]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[c] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, c)
		w.mu.Unlock()
		fn(c)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c, t := range w.pending {
		t.Stop()
		delete(w.pending, c)
	}
}
