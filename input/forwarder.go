package input

import (
	"log/slog"
	"slices"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/engine"
	"github.com/Alia5/macrokey/internal/log"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/virtual"
)

const (
	// DeviceJoystickCenter is the rest position of physical joystick axes,
	// which report 0..255.
	DeviceJoystickCenter int32 = 128
	// DefaultCalibration is the deadzone around the center.
	DefaultCalibration int32 = 20
	// MouseMoveInterval paces pointer movement in mouse mode.
	MouseMoveInterval = 100 * time.Millisecond
)

// Sink receives key transitions, normally an engine.Keyboard.
type Sink interface {
	KeyReceived(code keys.Code, state keys.State, ev keys.Event)
}

// ForwarderConfig wires a Forwarder.
type ForwarderConfig struct {
	Device string
	// Mode is what the joystick of the device drives: TargetJoystick,
	// TargetDigitalJoystick, TargetMouse, or anything else for d-pad keys.
	Mode macro.TargetType
	// Calibration defaults to DefaultCalibration.
	Calibration int32
	Output      engine.Emitter
	Sink        Sink
	// Queue is the fast queue of the engine.
	Queue  *engine.Queue
	Logger *slog.Logger
	Events log.EventLogger
}

// Forwarder normalizes raw device events. Keys go to the sink as
// transitions; joystick axes are handled according to the joystick mode.
type Forwarder struct {
	cfg    ForwarderConfig
	logger *slog.Logger

	// owned by the queue
	current, last  [2]int32
	move           [2]int32
	moveTimer      *engine.Timer
	digitalDown    []evdev.EvCode
	heldDirections []evdev.EvCode
}

// NewForwarder creates a Forwarder.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	if cfg.Calibration <= 0 {
		cfg.Calibration = DefaultCalibration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = log.NewEvents(nil)
	}
	return &Forwarder{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "forwarder", "device", cfg.Device),
	}
}

// Event queues a raw event for processing.
func (f *Forwarder) Event(ev keys.Event) {
	if ev.Code.Type == evdev.EV_MSC {
		return
	}
	f.cfg.Events.Log(true, f.cfg.Device, ev.Code, ev.Value)
	f.cfg.Queue.Post(func() { f.handle(ev) })
}

// Close stops mouse movement.
func (f *Forwarder) Close() {
	f.cfg.Queue.Call(f.stopMouse)
}

func (f *Forwarder) handle(ev keys.Event) {
	mode := f.cfg.Mode
	switch ev.Code.Type {
	case evdev.EV_ABS:
		if mode == macro.TargetJoystick {
			f.emit(macro.TargetJoystick, ev.Code, ev.Value-DeviceJoystickCenter)
			return
		}
		f.updateJoystick(ev)

	case evdev.EV_KEY:
		if ev.Value == 2 {
			return
		}
		switch ev.Code.Code {
		case evdev.BTN_X, evdev.BTN_Y, evdev.BTN_Z:
			switch mode {
			case macro.TargetMouse:
				f.emit(macro.TargetMouse, mouseButton(ev.Code), ev.Value)
				return
			case macro.TargetJoystick, macro.TargetDigitalJoystick:
				f.emit(mode, ev.Code, ev.Value)
				return
			}
		}
		state, _ := keys.StateForValue(ev.Value)
		f.cfg.Sink.KeyReceived(ev.Code, state, ev)

	case evdev.EV_SYN:
		if mode == macro.TargetJoystick {
			f.emit(macro.TargetJoystick, ev.Code, ev.Value)
		}

	default:
		state := keys.Up
		if ev.Value == 1 {
			state = keys.Down
		}
		f.cfg.Sink.KeyReceived(ev.Code, state, ev)
	}
}

func (f *Forwarder) emit(target macro.TargetType, code keys.Code, value int32) {
	if err := f.cfg.Output.Emit(target, code, value); err != nil {
		f.logger.Warn("failed to forward event", "target", target, "code", code, "value", value, "error", err)
	}
}

func mouseButton(c keys.Code) keys.Code {
	switch c.Code {
	case evdev.BTN_X:
		return keys.Key(evdev.BTN_LEFT)
	case evdev.BTN_Y:
		return keys.Key(evdev.BTN_RIGHT)
	case evdev.BTN_Z:
		return keys.Key(evdev.BTN_MIDDLE)
	}
	return c
}

// bounds are the edges of the deadzone around the center.
func (f *Forwarder) bounds() (low, high int32) {
	return virtual.JoystickCenter - f.cfg.Calibration, virtual.JoystickCenter + f.cfg.Calibration
}

func axisIndex(c evdev.EvCode) (int, bool) {
	switch c {
	case evdev.ABS_X:
		return 0, true
	case evdev.ABS_Y:
		return 1, true
	}
	return 0, false
}

func (f *Forwarder) updateJoystick(ev keys.Event) {
	i, ok := axisIndex(ev.Code.Code)
	if !ok {
		return
	}
	val := ev.Value - DeviceJoystickCenter
	switch f.cfg.Mode {
	case macro.TargetDigitalJoystick:
		f.current[i] = val
		f.digital(ev.Code, val)
	case macro.TargetMouse:
		f.current[i] = val
		f.mouse()
	default:
		f.directions(ev, val)
	}
}

type direction struct {
	low, high evdev.EvCode
}

var directions = map[evdev.EvCode]direction{
	evdev.ABS_X: {evdev.BTN_DPAD_LEFT, evdev.BTN_DPAD_RIGHT},
	evdev.ABS_Y: {evdev.BTN_DPAD_UP, evdev.BTN_DPAD_DOWN},
}

// digital emits the axis limits once when the stick leaves the deadzone and
// the center once when it returns.
func (f *Forwarder) digital(axis keys.Code, val int32) {
	low, high := f.bounds()
	d := directions[axis.Code]
	switch {
	case val < low && !slices.Contains(f.digitalDown, d.low):
		f.digitalDown = append(f.digitalDown, d.low)
		f.emit(macro.TargetDigitalJoystick, axis, virtual.JoystickMin)
	case val > high && !slices.Contains(f.digitalDown, d.high):
		f.digitalDown = append(f.digitalDown, d.high)
		f.emit(macro.TargetDigitalJoystick, axis, virtual.JoystickMax)
	case val >= low && val <= high:
		was := len(f.digitalDown)
		f.digitalDown = slices.DeleteFunc(f.digitalDown, func(c evdev.EvCode) bool { return c == d.low || c == d.high })
		if len(f.digitalDown) != was {
			f.emit(macro.TargetDigitalJoystick, axis, virtual.JoystickCenter)
		}
	}
}

// directions turns stick positions into d-pad key transitions so they can
// activate macros like any other key.
func (f *Forwarder) directions(ev keys.Event, val int32) {
	low, high := f.bounds()
	d := directions[ev.Code.Code]
	switch {
	case val < low:
		f.release(ev, d.high)
		f.press(ev, d.low)
	case val > high:
		f.release(ev, d.low)
		f.press(ev, d.high)
	default:
		f.release(ev, d.low, d.high)
	}
}

func (f *Forwarder) press(ev keys.Event, c evdev.EvCode) {
	if slices.Contains(f.heldDirections, c) {
		return
	}
	f.heldDirections = append(f.heldDirections, c)
	f.cfg.Sink.KeyReceived(keys.Key(c), keys.Down, ev)
}

func (f *Forwarder) release(ev keys.Event, cs ...evdev.EvCode) {
	for _, c := range cs {
		if i := slices.Index(f.heldDirections, c); i >= 0 {
			f.heldDirections = slices.Delete(f.heldDirections, i, i+1)
			f.cfg.Sink.KeyReceived(keys.Key(c), keys.Up, ev)
		}
	}
}

// mouse converts the stick offset beyond the deadzone into pointer motion
// repeated every MouseMoveInterval.
func (f *Forwarder) mouse() {
	low, high := f.bounds()
	if f.current == f.last {
		return
	}
	f.last = f.current
	for i, cur := range f.current {
		var m int32
		switch {
		case cur >= high:
			m = cur - high
		case cur <= low:
			m = cur - low
		}
		f.move[i] = min(max(m/8, -3), 3)
	}
	if f.move == [2]int32{} {
		f.stopMouse()
		return
	}
	if f.moveTimer == nil {
		f.mouseMove()
	}
}

func (f *Forwarder) mouseMove() {
	f.moveTimer = nil
	if f.move == [2]int32{} {
		return
	}
	if f.move[0] != 0 {
		f.emit(macro.TargetMouse, keys.Rel(evdev.REL_X), f.move[0])
	}
	if f.move[1] != 0 {
		f.emit(macro.TargetMouse, keys.Rel(evdev.REL_Y), f.move[1])
	}
	f.moveTimer = f.cfg.Queue.Schedule(MouseMoveInterval, f.mouseMove)
}

func (f *Forwarder) stopMouse() {
	f.moveTimer.Cancel()
	f.moveTimer = nil
}
