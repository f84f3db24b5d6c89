package system

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, message string) error
}

// Beeep notifies through the desktop notification service.
type Beeep struct {
	// Icon is an optional icon path.
	Icon string
}

func (b Beeep) Notify(title, message string) error {
	return beeep.Notify(title, message, b.Icon)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) error { return nil }

func notify(n Notifier, logger *slog.Logger, title, message string) {
	if err := n.Notify(title, message); err != nil {
		logger.Debug("notification failed", "title", title, "error", err)
	}
}
