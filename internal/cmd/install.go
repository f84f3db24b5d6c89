package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Install registers the daemon as a system service.
type Install struct {
	Args []string `arg:"" optional:"" passthrough:"" help:"Arguments passed to the daemon, e.g. --device=/dev/input/event3"`
}

func (c *Install) Run(logger *slog.Logger) error {
	return install(logger, c.Args)
}

// Uninstall removes the system service.
type Uninstall struct{}

func (c *Uninstall) Run(logger *slog.Logger) error {
	return uninstall(logger)
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Abs(exe)
}
