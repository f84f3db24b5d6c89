// Package script runs macro scripts: line oriented programs that press and
// release keys, pause, jump to labels and wait for the triggering keys.
//
//	label <name>             jump target
//	goto <name>              jump to a label
//	delay <ms>               pause when the profile sends variable delays
//	press <key>              desktop key down
//	release <key>            desktop key up
//	upress <target> <code>   virtual device key down
//	urelease <target> <code> virtual device key up
//	wait release|hold        suspend until the trigger keys reach the state
package script

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

// Listener observes key transitions of the device running the script.
type Listener interface {
	HandleKey(code keys.Code, state keys.State, post bool) bool
}

// Host is the environment a script runs in.
type Host interface {
	TypeString(text string, press bool) error
	Emit(target macro.TargetType, code keys.Code, value int32) error
	// AddListener registers l and returns the func that removes it.
	AddListener(l Listener) (remove func())
	// Resume continues a suspended script on the slow queue.
	Resume(fn func())
}

// Interpreter executes one firing of a script macro.
type Interpreter struct {
	macro  *macro.Macro
	lines  []string
	labels map[string]int
	delays macro.Delays
	host   Host
	ctx    context.Context
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration)

	line     int
	down     int
	onFinish func()
	triggers map[keys.Code]bool

	mu        sync.Mutex
	started   bool
	unlisten  func()
	released  map[keys.Code]bool
	cancelled bool
	allKeysUp bool
	waitState keys.State
	waitKeys  []keys.Code
}

// New prepares an interpreter. ctx cancels the execution.
func New(ctx context.Context, m *macro.Macro, delays macro.Delays, host Host, logger *slog.Logger) *Interpreter {
	in := &Interpreter{
		macro:    m,
		lines:    m.Script,
		labels:   map[string]int{},
		delays:   delays,
		host:     host,
		ctx:      ctx,
		logger:   logger.With("component", "script", "macro", m.DisplayName()),
		sleep:    sleep,
		line:     -1,
		triggers: map[keys.Code]bool{},
		released: map[keys.Code]bool{},
	}
	for _, c := range m.ActivatedBy.Codes {
		in.triggers[c] = true
	}
	for i, text := range in.lines {
		f := strings.Fields(text)
		if len(f) > 1 && strings.EqualFold(f[0], "label") {
			in.labels[strings.ToLower(f[1])] = i
		}
	}
	return in
}

func sleep(ctx context.Context, d time.Duration) {
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

// OnFinish registers fn to run once the script ends. It does not run while
// the script is suspended in a wait.
func (in *Interpreter) OnFinish(fn func()) { in.onFinish = fn }

// Start registers the interpreter for transitions of the trigger keys until
// the script finishes. Execute starts it when needed; callers that run the
// script later start it early so releases in between are seen.
func (in *Interpreter) Start() {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return
	}
	in.started = true
	in.mu.Unlock()

	unlisten := in.host.AddListener(in)
	in.mu.Lock()
	in.unlisten = unlisten
	in.mu.Unlock()
}

// Execute runs from the current line until the script ends or suspends.
func (in *Interpreter) Execute() {
	in.Start()
	if !in.run() {
		in.finish()
	}
}

func (in *Interpreter) finish() {
	in.mu.Lock()
	unlisten := in.unlisten
	in.unlisten = nil
	in.waitState = keys.None
	in.mu.Unlock()
	if unlisten != nil {
		unlisten()
	}
	if in.onFinish != nil {
		in.onFinish()
	}
}

// run reports whether the script suspended.
func (in *Interpreter) run() bool {
	for {
		in.mu.Lock()
		stop := in.cancelled
		in.mu.Unlock()
		if in.down == 0 && (stop || in.ctx.Err() != nil) {
			in.logger.Warn("macro cancelled")
			return false
		}

		in.line++
		if in.line >= len(in.lines) {
			return false
		}
		text := in.lines[in.line]
		f := strings.Fields(text)
		if len(f) == 0 {
			continue
		}
		if len(f) < 2 {
			in.logger.Error("insufficient arguments in macro script", "line", text)
			continue
		}
		op, val := strings.ToLower(f[0]), f[1]

		switch op {
		case "label":
		case "goto":
			if i, ok := in.labels[strings.ToLower(val)]; ok {
				in.line = i
			} else {
				in.logger.Warn("unknown goto label in macro script, ignoring", "label", val)
			}
		case "delay":
			if in.ctx.Err() != nil || !in.delays.Send || in.delays.Fixed {
				continue
			}
			ms, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				in.logger.Error("invalid delay in macro script", "line", text, "error", err)
				continue
			}
			in.sleep(in.ctx, time.Duration(ms)*time.Millisecond)
		case "press":
			if in.down > 0 {
				in.sleep(in.ctx, in.delays.ReleaseDelay())
			}
			in.typeString(val, true)
			in.down++
			in.sleep(in.ctx, in.delays.PressDelay())
		case "release":
			in.typeString(val, false)
			in.down--
		case "upress":
			if len(f) < 3 {
				in.logger.Error("invalid operation in macro script", "line", text)
				continue
			}
			if in.down > 0 {
				in.sleep(in.ctx, in.delays.ReleaseDelay())
			}
			in.down++
			in.emit(val, f[2], 1)
			in.sleep(in.ctx, in.delays.PressDelay())
		case "urelease":
			if len(f) < 3 {
				in.logger.Error("invalid operation in macro script", "line", text)
				continue
			}
			in.down--
			in.emit(val, f[2], 0)
		case "wait":
			if suspended, stop := in.wait(strings.ToLower(val)); stop {
				return suspended
			}
		default:
			in.logger.Error("invalid operation in macro script", "line", text)
		}
	}
}

// wait reports whether execution stops here, and if so whether the script
// is suspended or finished because the trigger keys are already up.
func (in *Interpreter) wait(what string) (suspended, stop bool) {
	activation := in.macro.State()
	var state keys.State
	switch what {
	case "release":
		if activation == keys.Up {
			in.logger.Error("wait release cannot be used with macros that activate on release")
			return false, false
		}
		state = keys.Up
	case "hold":
		if activation != keys.Down {
			in.logger.Error("wait hold cannot be used with macros that activate on hold or release")
			return false, false
		}
		state = keys.Held
	default:
		in.logger.Error("wait may only have an argument of release or hold", "argument", what)
		return false, false
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.allKeysUp {
		in.logger.Warn("all keys for the macro are already up, the rest of the script will be ignored")
		return false, true
	}
	if state == keys.Held && len(in.released) > 0 {
		in.logger.Warn("a key for the macro was released before it was held, the rest of the script will be ignored")
		in.cancelled = true
		return false, true
	}
	in.waitState = state
	in.waitKeys = in.waitKeys[:0]
	for _, c := range in.macro.ActivatedBy.Codes {
		if !in.released[c] {
			in.waitKeys = append(in.waitKeys, c)
		}
	}
	return true, true
}

// HandleKey tracks the trigger keys for the whole execution. While the
// script waits, the transition that satisfies a HELD wait is consumed; UP
// transitions always continue through dispatch so the key store sees the
// release.
func (in *Interpreter) HandleKey(code keys.Code, state keys.State, post bool) bool {
	if post || !in.triggers[code] {
		return false
	}
	in.mu.Lock()
	switch state {
	case keys.Up:
		in.released[code] = true
	case keys.Down:
		delete(in.released, code)
	}
	if len(in.released) == len(in.triggers) {
		in.allKeysUp = true
	}
	if in.waitState == keys.None {
		in.mu.Unlock()
		return false
	}
	if state == in.waitState || (state == keys.Up && in.waitState == keys.Held) {
		in.waitKeys = slices.DeleteFunc(in.waitKeys, func(c keys.Code) bool { return c == code })
	}
	if len(in.waitKeys) > 0 {
		in.mu.Unlock()
		return false
	}
	if state == keys.Up && in.waitState == keys.Held {
		in.cancelled = true
	}
	in.waitState = keys.None
	in.mu.Unlock()

	in.host.Resume(in.Execute)
	return state == keys.Held
}

func (in *Interpreter) typeString(text string, press bool) {
	if err := in.host.TypeString(text, press); err != nil {
		in.logger.Error("failed to send desktop key", "key", text, "press", press, "error", err)
	}
}

func (in *Interpreter) emit(target, name string, value int32) {
	t, err := macro.ParseTargetType(target)
	if err != nil || !t.IsUInput() {
		in.logger.Error("invalid virtual device in macro script", "target", target)
		return
	}
	code, err := keys.Parse(name)
	if err != nil {
		in.logger.Error("unknown key in macro script", "key", name, "error", err)
		return
	}
	if err := in.host.Emit(t, code, value); err != nil {
		in.logger.Error("failed to emit", "target", t, "code", code, "value", value, "error", err)
	}
}
