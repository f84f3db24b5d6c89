package input_test

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"

	"github.com/Alia5/macrokey/engine"
	"github.com/Alia5/macrokey/input"
	th "github.com/Alia5/macrokey/internal/testing"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

type transition struct {
	Code  keys.Code
	State keys.State
}

type sink struct {
	mu  sync.Mutex
	got []transition
}

func (s *sink) KeyReceived(code keys.Code, state keys.State, _ keys.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, transition{code, state})
}

func (s *sink) all() []transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transition(nil), s.got...)
}

type rig struct {
	fwd  *input.Forwarder
	out  *th.Emitter
	sink *sink
	q    *engine.Queue
}

func newRig(t *testing.T, mode macro.TargetType) *rig {
	t.Helper()
	r := &rig{out: &th.Emitter{}, sink: &sink{}, q: engine.NewQueue("fast", slog.Default())}
	r.fwd = input.NewForwarder(input.ForwarderConfig{
		Device: "test",
		Mode:   mode,
		Output: r.out,
		Sink:   r.sink,
		Queue:  r.q,
	})
	t.Cleanup(func() {
		r.fwd.Close()
		r.q.Close()
	})
	return r
}

func (r *rig) send(code keys.Code, value int32) {
	r.fwd.Event(keys.Event{Code: code, Value: value})
	r.q.Flush()
}

var (
	absX = keys.Abs(evdev.ABS_X)
	absY = keys.Abs(evdev.ABS_Y)
)

func TestKeysBecomeTransitions(t *testing.T) {
	r := newRig(t, macro.TargetNothing)
	a := keys.Key(evdev.KEY_A)
	r.send(a, 1)
	r.send(a, 2)
	r.send(a, 0)
	r.send(keys.Code{Type: evdev.EV_MSC, Code: evdev.MSC_SCAN}, 30)
	r.send(keys.Rel(evdev.REL_X), 5)

	assert.Equal(t, []transition{
		{a, keys.Down},
		{a, keys.Up},
		{keys.Rel(evdev.REL_X), keys.Up},
	}, r.sink.all())
	assert.Empty(t, r.out.Events())
}

func TestJoystickMode(t *testing.T) {
	r := newRig(t, macro.TargetJoystick)
	r.send(absX, 255)
	r.send(absY, 0)
	r.send(keys.Key(evdev.BTN_X), 1)
	r.send(keys.Code{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}, 0)

	assert.Equal(t, []th.Emitted{
		{Target: macro.TargetJoystick, Code: absX, Value: 127},
		{Target: macro.TargetJoystick, Code: absY, Value: -128},
		{Target: macro.TargetJoystick, Code: keys.Key(evdev.BTN_X), Value: 1},
		{Target: macro.TargetJoystick, Code: keys.Code{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT}, Value: 0},
	}, r.out.Events())
	assert.Empty(t, r.sink.all())
}

func TestDigitalJoystickMode(t *testing.T) {
	r := newRig(t, macro.TargetDigitalJoystick)
	r.send(absX, 10)  // left
	r.send(absX, 0)   // still left, nothing new
	r.send(absX, 130) // center
	r.send(absX, 130)
	r.send(absY, 250) // down
	r.send(absY, 128) // center

	assert.Equal(t, []th.Emitted{
		{Target: macro.TargetDigitalJoystick, Code: absX, Value: -127},
		{Target: macro.TargetDigitalJoystick, Code: absX, Value: 0},
		{Target: macro.TargetDigitalJoystick, Code: absY, Value: 127},
		{Target: macro.TargetDigitalJoystick, Code: absY, Value: 0},
	}, r.out.Events())
}

func TestDirectionKeys(t *testing.T) {
	r := newRig(t, macro.TargetKeyboard)
	left := keys.Key(evdev.BTN_DPAD_LEFT)
	right := keys.Key(evdev.BTN_DPAD_RIGHT)
	up := keys.Key(evdev.BTN_DPAD_UP)

	r.send(absX, 0)
	r.send(absX, 5)
	r.send(absX, 255)
	r.send(absX, 128)
	r.send(absY, 0)
	r.send(absY, 140)

	assert.Equal(t, []transition{
		{left, keys.Down},
		{left, keys.Up},
		{right, keys.Down},
		{right, keys.Up},
		{up, keys.Down},
		{up, keys.Up},
	}, r.sink.all())
}

func TestMouseMode(t *testing.T) {
	r := newRig(t, macro.TargetMouse)
	r.send(keys.Key(evdev.BTN_Y), 1)
	assert.Equal(t, []th.Emitted{{Target: macro.TargetMouse, Code: keys.Key(evdev.BTN_RIGHT), Value: 1}}, r.out.Events())
	r.out.Reset()

	// 255-128 = 127, beyond the deadzone by 107, /8 clamps to 3
	r.send(absX, 255)
	th.Eventually(t, func() bool { return len(r.out.Events()) >= 2 }, "pointer keeps moving")
	for _, ev := range r.out.Events() {
		assert.Equal(t, th.Emitted{Target: macro.TargetMouse, Code: keys.Rel(evdev.REL_X), Value: 3}, ev)
	}

	r.send(absX, 128)
	n := len(r.out.Events())
	time.Sleep(3 * input.MouseMoveInterval / 2)
	assert.Equal(t, n, len(r.out.Events()), "centering stops the pointer")
}
