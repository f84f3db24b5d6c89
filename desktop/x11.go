package desktop

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-vgo/robotgo"
)

// X11 injects keys with robotgo.
type X11 struct {
	logger *slog.Logger
	mu     sync.Mutex
	toggle func(key string, args ...any) error
}

// NewX11 creates the X11 backend.
func NewX11(logger *slog.Logger) *X11 {
	return &X11{logger: logger, toggle: robotgo.KeyToggle}
}

func (x *X11) TypeString(text string, press bool) error {
	k, ok := Lookup(text)
	if !ok {
		x.logger.Warn("could not map text to a key", "text", text)
		return nil
	}
	dir := "up"
	if press {
		dir = "down"
	}
	args := []any{dir}
	if k.Shift {
		args = append(args, "shift")
	}
	x.logger.Debug("sending key", "key", k.Name, "press", press, "shift", k.Shift)

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.toggle(k.Name, args...); err != nil {
		return fmt.Errorf("x11 key %s: %w", k.Name, err)
	}
	return nil
}
