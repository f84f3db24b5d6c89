// Package desktop injects text into the desktop session. The X11 backend
// goes through robotgo; the uinput backend types through a dedicated
// virtual keyboard and also works on Wayland and the console.
package desktop

import (
	"fmt"
	"log/slog"
	"strings"
)

// IO types single characters or named keys.
type IO interface {
	TypeString(text string, press bool) error
}

// Backend names accepted by New.
const (
	BackendX11    = "x11"
	BackendUInput = "uinput"
	BackendNone   = "none"
)

// New creates the named backend.
func New(backend string, logger *slog.Logger) (IO, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "desktop", "backend", backend)
	switch strings.ToLower(backend) {
	case BackendX11, "":
		return NewX11(logger), nil
	case BackendUInput:
		return NewUInput(logger)
	case BackendNone:
		return Nop{logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown desktop backend %q", backend)
}

// Nop drops text, logging what would have been typed.
type Nop struct{ logger *slog.Logger }

func (n Nop) TypeString(text string, press bool) error {
	if n.logger != nil {
		n.logger.Debug("desktop injection disabled", "text", text, "press", press)
	}
	return nil
}
