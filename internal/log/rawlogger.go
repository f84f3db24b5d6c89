package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// EventLogger records raw input and output events for troubleshooting
// mappings.
type EventLogger interface {
	// Log records one event. in=true is a physical input event, in=false an
	// event written to a virtual device.
	Log(in bool, device string, code fmt.Stringer, value int32)
}

type eventLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewEvents creates an EventLogger writing one line per event to w. A nil
// writer gives a no-op logger.
func NewEvents(w io.Writer) EventLogger {
	return &eventLogger{w: w}
}

func (e *eventLogger) Log(in bool, device string, code fmt.Stringer, value int32) {
	if e.w == nil {
		return
	}
	line := fmt.Sprintf("%s %s %s %s %d\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		direction(in),
		device,
		code,
		value)

	e.mu.Lock()
	_, _ = e.w.Write([]byte(line))
	e.mu.Unlock()
}

type slogEvents struct{ logger *slog.Logger }

// SlogEvents logs events at trace level through logger.
func SlogEvents(logger *slog.Logger) EventLogger {
	return slogEvents{logger: logger}
}

func (s slogEvents) Log(in bool, device string, code fmt.Stringer, value int32) {
	ctx := context.Background()
	if !s.logger.Enabled(ctx, LevelTrace) {
		return
	}
	s.logger.Log(ctx, LevelTrace, "event", "dir", direction(in), "device", device, "code", code.String(), "value", value)
}

func direction(in bool) string {
	if in {
		return "IN "
	}
	return "OUT"
}
