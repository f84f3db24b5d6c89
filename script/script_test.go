package script

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

type fakeHost struct {
	mu        sync.Mutex
	ops       []string
	listeners []Listener
	resumed   int
}

func (h *fakeHost) TypeString(text string, press bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if press {
		h.ops = append(h.ops, "press "+text)
	} else {
		h.ops = append(h.ops, "release "+text)
	}
	return nil
}

func (h *fakeHost) Emit(target macro.TargetType, code keys.Code, value int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ops = append(h.ops, fmt.Sprintf("emit %s %s %d", target, code, value))
	return nil
}

func (h *fakeHost) AddListener(l Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, x := range h.listeners {
			if x == l {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

func (h *fakeHost) Resume(fn func()) {
	h.mu.Lock()
	h.resumed++
	h.mu.Unlock()
	fn()
}

func (h *fakeHost) send(code keys.Code, state keys.State) bool {
	h.mu.Lock()
	ls := append([]Listener(nil), h.listeners...)
	h.mu.Unlock()
	for i := len(ls) - 1; i >= 0; i-- {
		if ls[i].HandleKey(code, state, false) {
			return true
		}
	}
	return false
}

func newInterpreter(t *testing.T, m *macro.Macro, d macro.Delays) (*Interpreter, *fakeHost, *[]time.Duration) {
	t.Helper()
	h := &fakeHost{}
	in := New(context.Background(), m, d, h, slog.Default())
	var durations []time.Duration
	slept := &durations
	in.sleep = func(_ context.Context, d time.Duration) {
		if d > 0 {
			*slept = append(*slept, d)
		}
	}
	return in, h, slept
}

var trigger = keys.Key(evdev.KEY_F1)

func TestScriptOperations(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		delays macro.Delays
		ops    []string
		slept  []time.Duration
	}{
		{
			name:  "press and release",
			lines: []string{"press a", "release a"},
			ops:   []string{"press a", "release a"},
		},
		{
			name:  "virtual device keys",
			lines: []string{"upress keyboard KEY_B", "urelease KEYBOARD KEY_B"},
			ops:   []string{"emit KEYBOARD KEY_B 1", "emit KEYBOARD KEY_B 0"},
		},
		{
			name:   "delay with variable delays",
			lines:  []string{"press a", "delay 50", "release a"},
			delays: macro.Delays{Send: true},
			ops:    []string{"press a", "release a"},
			slept:  []time.Duration{50 * time.Millisecond},
		},
		{
			name:   "delay ignored without send delays",
			lines:  []string{"delay 50"},
			delays: macro.Delays{},
		},
		{
			name:   "delay ignored with fixed delays",
			lines:  []string{"delay 50"},
			delays: macro.Delays{Send: true, Fixed: true},
		},
		{
			name:   "fixed press and release delays",
			lines:  []string{"press a", "press b", "release b", "release a"},
			delays: macro.Delays{Fixed: true, Press: 10 * time.Millisecond, Release: 20 * time.Millisecond},
			ops:    []string{"press a", "press b", "release b", "release a"},
			slept:  []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond},
		},
		{
			name:  "unknown goto falls through",
			lines: []string{"goto nowhere", "press a"},
			ops:   []string{"press a"},
		},
		{
			name:  "goto skips lines",
			lines: []string{"goto End", "press a", "label end", "press b"},
			ops:   []string{"press b"},
		},
		{
			name:  "invalid lines are skipped",
			lines: []string{"", "press", "upress keyboard", "jump x", "upress printer KEY_A", "upress keyboard KEY_NOPE", "press c"},
			ops:   []string{"press c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := macro.NewScript(keys.NewSequence(keys.Down, trigger), tt.lines...)
			in, h, slept := newInterpreter(t, m, tt.delays)
			in.Execute()
			assert.Equal(t, tt.ops, h.ops)
			assert.Equal(t, tt.slept, *slept)
		})
	}
}

func TestScriptDeterministic(t *testing.T) {
	lines := []string{"press a", "delay 5", "release a", "upress mouse BTN_LEFT", "urelease mouse BTN_LEFT"}
	for _, d := range []macro.Delays{{}, {Send: true}} {
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger), lines...)
		first, h1, _ := newInterpreter(t, m, d)
		first.Execute()
		second, h2, _ := newInterpreter(t, m, d)
		second.Execute()
		assert.Equal(t, h1.ops, h2.ops)
	}
}

func TestScriptCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "press a", "release a")
	h := &fakeHost{}
	New(ctx, m, macro.Delays{}, h, slog.Default()).Execute()
	assert.Empty(t, h.ops)
}

func TestScriptWaitRelease(t *testing.T) {
	m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "press a", "wait release", "release a", "wait release", "press b")
	in, h, _ := newInterpreter(t, m, macro.Delays{})

	in.Execute()
	assert.Equal(t, []string{"press a"}, h.ops)
	require.Len(t, h.listeners, 1)

	assert.False(t, h.send(keys.Key(evdev.KEY_Z), keys.Up), "other keys are ignored")
	assert.Equal(t, []string{"press a"}, h.ops)

	assert.False(t, h.send(trigger, keys.Up), "release is not consumed")
	assert.Equal(t, []string{"press a", "release a"}, h.ops, "second wait ends the script")
	assert.Empty(t, h.listeners)
	assert.Equal(t, 1, h.resumed)
}

func TestScriptWaitHold(t *testing.T) {
	t.Run("held resumes", func(t *testing.T) {
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "wait hold", "press h")
		in, h, _ := newInterpreter(t, m, macro.Delays{})
		in.Execute()
		require.Len(t, h.listeners, 1)

		assert.True(t, h.send(trigger, keys.Held))
		assert.Equal(t, []string{"press h"}, h.ops)
		assert.Empty(t, h.listeners)
	})
	t.Run("release before hold cancels", func(t *testing.T) {
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "wait hold", "press h")
		in, h, _ := newInterpreter(t, m, macro.Delays{})
		in.Execute()

		assert.False(t, h.send(trigger, keys.Up))
		assert.Empty(t, h.ops)
		assert.Empty(t, h.listeners)
	})
	t.Run("invalid for release activated macros", func(t *testing.T) {
		m := macro.NewScript(keys.NewSequence(keys.Up, trigger), "wait hold", "wait release", "press x")
		in, h, _ := newInterpreter(t, m, macro.Delays{})
		in.Execute()
		assert.Equal(t, []string{"press x"}, h.ops)
		assert.Empty(t, h.listeners)
	})
}

func TestScriptWaitChord(t *testing.T) {
	other := keys.Key(evdev.KEY_F2)
	m := macro.NewScript(keys.NewSequence(keys.Down, trigger, other), "wait release", "press done")
	in, h, _ := newInterpreter(t, m, macro.Delays{})
	in.Execute()

	h.send(trigger, keys.Up)
	assert.Empty(t, h.ops)
	h.send(other, keys.Up)
	assert.Equal(t, []string{"press done"}, h.ops)
}

func TestScriptOnFinish(t *testing.T) {
	m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "wait release", "press a")
	in, h, _ := newInterpreter(t, m, macro.Delays{})
	finished := 0
	in.OnFinish(func() { finished++ })

	in.Execute()
	assert.Zero(t, finished, "suspended scripts are not finished")

	h.send(trigger, keys.Up)
	assert.Equal(t, 1, finished)
}

func TestScriptReleaseBeforeWait(t *testing.T) {
	t.Run("released during delay", func(t *testing.T) {
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "delay 100", "wait release", "press b")
		in, h, _ := newInterpreter(t, m, macro.Delays{Send: true})
		in.sleep = func(context.Context, time.Duration) {
			h.send(trigger, keys.Up)
		}
		finished := 0
		in.OnFinish(func() { finished++ })

		in.Execute()
		assert.Empty(t, h.ops, "the wait after a release ends the script")
		assert.Empty(t, h.listeners)
		assert.Equal(t, 1, finished)

		h.send(trigger, keys.Down)
		h.send(trigger, keys.Up)
		assert.Empty(t, h.ops, "later taps do not resume the script")
		assert.Zero(t, h.resumed)
	})
	t.Run("released before the first line", func(t *testing.T) {
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "press a", "wait release", "press b")
		in, h, _ := newInterpreter(t, m, macro.Delays{})
		in.Start()
		require.Len(t, h.listeners, 1)
		h.send(trigger, keys.Up)

		in.Execute()
		assert.Equal(t, []string{"press a"}, h.ops)
		assert.Empty(t, h.listeners)
	})
	t.Run("chord key released before hold", func(t *testing.T) {
		other := keys.Key(evdev.KEY_F2)
		m := macro.NewScript(keys.NewSequence(keys.Down, trigger, other), "wait hold", "press h")
		in, h, _ := newInterpreter(t, m, macro.Delays{})
		in.Start()
		h.send(other, keys.Up)

		in.Execute()
		assert.Empty(t, h.ops)
		assert.Empty(t, h.listeners)
	})
}

func TestScriptListensUntilFinished(t *testing.T) {
	m := macro.NewScript(keys.NewSequence(keys.Down, trigger), "press a", "release a")
	in, h, _ := newInterpreter(t, m, macro.Delays{})
	in.sleep = func(context.Context, time.Duration) {
		assert.Len(t, h.listeners, 1, "registered while running")
	}
	in.Execute()
	assert.Equal(t, []string{"press a", "release a"}, h.ops)
	assert.Empty(t, h.listeners)
}
