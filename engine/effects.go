package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/script"
)

var errNoDesktop = errors.New("no desktop backend configured")

// Execution is one firing of a macro.
type Execution struct {
	Macro  *macro.Macro
	Keys   []*KeyState
	Event  keys.Event
	Device string
	Delays macro.Delays

	ctx    context.Context
	cancel context.CancelFunc
	script *script.Interpreter
}

// Cancel stops the execution at its next checkpoint.
func (x *Execution) Cancel() { x.cancel() }

// Cancelled reports whether the execution was cancelled.
func (x *Execution) Cancelled() bool { return x.ctx.Err() != nil }

func (k *Keyboard) newExecution(m *macro.Macro, ks []*KeyState, ev keys.Event) *Execution {
	ctx, cancel := context.WithCancel(k.ctx)
	var delays macro.Delays
	if k.env != nil {
		delays = k.env.Delays()
	}
	return &Execution{Macro: m, Keys: ks, Event: ev, Device: k.device, Delays: delays, ctx: ctx, cancel: cancel}
}

// process fires m. Commands, text and scripts run on the slow queue; the
// other effects run inline so their result reaches dispatch.
func (k *Keyboard) process(m *macro.Macro, ks []*KeyState, ev keys.Event) bool {
	x := k.newExecution(m, ks, ev)
	switch m.Kind() {
	case macro.KindScript:
		// listen from the triggering transition on, the release may come
		// before the slow queue gets to the script
		x.script = k.newInterpreter(x)
		x.script.Start()
		k.slow.Post(func() { k.fire(x) })
		return true
	case macro.KindCommand, macro.KindSimple:
		k.slow.Post(func() { k.fire(x) })
		return true
	}
	return k.fire(x)
}

// fire runs the effect of an execution. It returns false only when an action
// was not handled by any listener.
func (k *Keyboard) fire(x *Execution) (handled bool) {
	handled = true
	logger := k.logger.With("macro", x.Macro.DisplayName(), "kind", x.Macro.Kind())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("macro failed", "panic", r)
			handled = true
		}
	}()
	if x.Macro.Kind() != macro.KindScript {
		defer x.cancel()
	}

	var err error
	switch x.Macro.Kind() {
	case macro.KindRemap:
		err = k.out.Emit(x.Macro.Type, x.Macro.Code, k.remapValue(x.Macro, x.Event, 1))
	case macro.KindCommand:
		err = k.runCommand(x)
	case macro.KindSimple:
		err = k.typeText(x)
	case macro.KindScript:
		x.script.Execute()
	case macro.KindAction:
		b := macro.NewActionBinding(x.Device, x.Macro.Action, x.Macro.ActivatedBy)
		if !k.actionPerformed(b) {
			logger.Debug("action not handled", "action", x.Macro.Action)
			return false
		}
		consumeUntilRelease(x.Keys)
	case macro.KindNoop:
	}
	if err != nil {
		logger.Error("macro failed", "error", err)
	}
	return true
}

func (k *Keyboard) runCommand(x *Execution) error {
	m := x.Macro
	cmd := exec.CommandContext(x.ctx, m.Command, m.Arguments...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	k.logger.Debug("running command", "command", m.Command, "args", m.Arguments)
	err := cmd.Run()

	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		k.logger.Debug("command output", "command", m.Command, "line", sc.Text())
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case x.Cancelled():
		k.logger.Warn("command interrupted", "command", m.Command)
	case errors.As(err, &exitErr):
		k.logger.Warn("command exited with error", "command", m.Command, "status", exitErr.ExitCode())
	default:
		return err
	}
	return nil
}

// typeText types the text of a simple macro through the desktop backend.
// Escapes: \t \r \n(as \r) \b \e \\, and \p pauses for a press plus a
// release delay.
func (k *Keyboard) typeText(x *Execution) error {
	if k.desktop == nil {
		return errNoDesktop
	}
	press, release := x.Delays.PressDelay(), x.Delays.ReleaseDelay()
	esc := false
	n := 0
	for _, c := range x.Macro.Text {
		if x.Cancelled() {
			k.logger.Warn("macro cancelled", "macro", x.Macro.DisplayName())
			return nil
		}
		if c == '\\' && !esc {
			esc = true
			continue
		}
		if esc && c == 'p' {
			wait(x.ctx, press+release)
			esc = false
			continue
		}
		if n > 0 {
			wait(x.ctx, release)
		}
		if esc {
			switch c {
			case 't':
				c = '\t'
			case 'r', 'n':
				c = '\r'
			case 'b':
				c = '\b'
			case 'e':
				c = 0x1b
			}
		}
		s := string(c)
		if err := k.desktop.TypeString(s, true); err != nil {
			return err
		}
		wait(x.ctx, press)
		if err := k.desktop.TypeString(s, false); err != nil {
			return err
		}
		n++
		esc = false
	}
	return nil
}

func (k *Keyboard) newInterpreter(x *Execution) *script.Interpreter {
	in := script.New(x.ctx, x.Macro, x.Delays, &scriptHost{k: k}, k.logger)
	in.OnFinish(x.cancel)
	return in
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// scriptHost lets scripts reach the keyboard without the script package
// depending on the engine.
type scriptHost struct{ k *Keyboard }

func (h *scriptHost) TypeString(text string, press bool) error {
	if h.k.desktop == nil {
		return errNoDesktop
	}
	return h.k.desktop.TypeString(text, press)
}

func (h *scriptHost) Emit(target macro.TargetType, code keys.Code, value int32) error {
	return h.k.out.Emit(target, code, value)
}

func (h *scriptHost) AddListener(l script.Listener) func() { return h.k.AddListener(l) }
func (h *scriptHost) Resume(fn func())                      { h.k.slow.Post(fn) }

// remapValue is the value a remap emits when its virtual key goes down.
// Keys use the pressed value, axes and relative motion the configured one.
func (k *Keyboard) remapValue(m *macro.Macro, ev keys.Event, pressed int32) int32 {
	if m.UsesRawValue() {
		return ev.Value
	}
	if m.Code.Type == evdev.EV_KEY || m.Value == 0 {
		return pressed
	}
	return m.Value
}

func (k *Keyboard) pressRemap(m *macro.Macro, ev keys.Event) {
	k.Emit(m.Type, m.Code, k.remapValue(m, ev, 1))
}

func (k *Keyboard) releaseRemap(m *macro.Macro) {
	if m.Code.Type == evdev.EV_REL {
		return
	}
	k.Emit(m.Type, m.Code, 0)
}

func (k *Keyboard) typeRemap(m *macro.Macro, ev keys.Event) {
	if m.Code.Type != evdev.EV_KEY {
		k.pressRemap(m, ev)
		k.releaseRemap(m)
		return
	}
	if err := k.out.Type(m.Type, m.Code); err != nil {
		k.logger.Warn("failed to type", "target", m.Type, "code", m.Code, "error", err)
	}
}
