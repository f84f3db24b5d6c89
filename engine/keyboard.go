package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

// KeyboardConfig wires a Keyboard to its collaborators.
type KeyboardConfig struct {
	// Device is the UID of the physical device.
	Device string
	// HoldDelay defaults to DefaultHoldDelay.
	HoldDelay time.Duration
	Env       Environment
	Output    Emitter
	Desktop   DesktopIO
	// Fast runs dispatch, hold and repeat timers. Slow runs commands, text
	// and scripts.
	Fast   *Queue
	Slow   *Queue
	Logger *slog.Logger
}

// Keyboard is the macro dispatcher of one physical device.
type Keyboard struct {
	device    string
	holdDelay time.Duration
	env       Environment
	out       Emitter
	desktop   DesktopIO
	fast      *Queue
	slow      *Queue
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// owned by the fast queue
	states  map[keys.Code]*KeyState
	repeats map[string]*repeat

	mu              sync.Mutex
	listeners       []keyListener
	nextListener    uint64
	actionListeners []ActionListener
	bindings        []macro.ActionBinding
}

type keyListener struct {
	id uint64
	l  KeyListener
}

type repeat struct {
	timer *Timer
}

// NewKeyboard creates a dispatcher.
func NewKeyboard(cfg KeyboardConfig) *Keyboard {
	if cfg.HoldDelay <= 0 {
		cfg.HoldDelay = DefaultHoldDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Keyboard{
		device:    cfg.Device,
		holdDelay: cfg.HoldDelay,
		env:       cfg.Env,
		out:       cfg.Output,
		desktop:   cfg.Desktop,
		fast:      cfg.Fast,
		slow:      cfg.Slow,
		logger:    cfg.Logger.With("component", "keyboard", "device", cfg.Device),
		ctx:       ctx,
		cancel:    cancel,
		states:    map[keys.Code]*KeyState{},
		repeats:   map[string]*repeat{},
	}
}

// Device returns the UID of the device.
func (k *Keyboard) Device() string { return k.device }

// KeyReceived queues a transition for dispatch.
func (k *Keyboard) KeyReceived(code keys.Code, state keys.State, ev keys.Event) {
	k.fast.Post(func() { k.handle(code, state, ev) })
}

// Emit forwards an event straight to a virtual device, bypassing dispatch.
func (k *Keyboard) Emit(target macro.TargetType, code keys.Code, value int32) {
	if err := k.out.Emit(target, code, value); err != nil {
		k.logger.Warn("failed to emit", "target", target, "code", code, "value", value, "error", err)
	}
}

// AddListener registers a key listener and returns the func that removes
// it. Newer listeners run first.
func (k *Keyboard) AddListener(l KeyListener) (remove func()) {
	k.mu.Lock()
	defer k.mu.Unlock()
	id := k.nextListener
	k.nextListener++
	k.listeners = append(k.listeners, keyListener{id: id, l: l})
	return func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.listeners = slices.DeleteFunc(k.listeners, func(e keyListener) bool { return e.id == id })
	}
}

// AddActionListener registers an action handler. Newer handlers run first.
func (k *Keyboard) AddActionListener(l ActionListener) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.actionListeners = append(k.actionListeners, l)
}

// SetBindings replaces the device action bindings.
func (k *Keyboard) SetBindings(b []macro.ActionBinding) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bindings = slices.Clone(b)
}

// Bindings returns the device action bindings.
func (k *Keyboard) Bindings() []macro.ActionBinding {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.bindings)
}

// KeyStates returns a copy of the tracked key states.
func (k *Keyboard) KeyStates() map[keys.Code]KeyState {
	out := map[keys.Code]KeyState{}
	k.fast.Call(func() {
		for c, s := range k.states {
			cp := *s
			cp.hold = nil
			out[c] = cp
		}
	})
	return out
}

// Repeating reports whether the macro bound to seq is in the repeat set.
func (k *Keyboard) Repeating(seq keys.Sequence) bool {
	var ok bool
	k.fast.Call(func() { _, ok = k.repeats[seq.String()] })
	return ok
}

// Close stops every repeat and hold timer and cancels running executions.
func (k *Keyboard) Close() {
	k.cancel()
	k.fast.Call(func() {
		for id := range k.repeats {
			k.stopRepeat(id)
		}
		for _, s := range k.states {
			s.cancelHold()
		}
		k.states = map[keys.Code]*KeyState{}
	})
}

func (k *Keyboard) keyListeners() []keyListener {
	k.mu.Lock()
	defer k.mu.Unlock()
	return slices.Clone(k.listeners)
}

func (k *Keyboard) notify(code keys.Code, state keys.State, post bool) bool {
	ls := k.keyListeners()
	for i := len(ls) - 1; i >= 0; i-- {
		if ls[i].l.HandleKey(code, state, post) {
			return true
		}
	}
	return false
}

func (k *Keyboard) actionPerformed(b macro.ActionBinding) bool {
	k.mu.Lock()
	ls := slices.Clone(k.actionListeners)
	k.mu.Unlock()
	for i := len(ls) - 1; i >= 0; i-- {
		if ls[i].ActionPerformed(b) {
			return true
		}
	}
	return false
}

func (k *Keyboard) handle(code keys.Code, state keys.State, ev keys.Event) {
	k.logger.Debug("key received", "code", code, "state", state, "value", ev.Value)
	if k.notify(code, state, false) {
		return
	}

	handled := false
	if k.configure(code, state, ev) {
		if bank := k.env.ActiveBank(); bank != nil {
			handled = k.handleRemaps(bank, ev)
			if !handled {
				handled = k.handleNormalMacros(bank, ev)
			}
		}
		if !handled {
			handled = k.handleActions()
		}
		// the release of a defeated key belongs to the macro that defeated it
		if ks, ok := k.states[code]; ok && !handled && state == keys.Up && ks.DefeatRelease {
			handled = true
		}
	}

	if k.notify(code, state, true) {
		return
	}
	k.collect()

	if state != keys.Held && !handled {
		k.passthrough(code, state, ev)
	}
}

func (k *Keyboard) configure(code keys.Code, state keys.State, ev keys.Event) bool {
	if !code.IsKey() {
		return false
	}
	ks, ok := k.states[code]
	if !ok {
		if state == keys.Held {
			return false
		}
		ks = &KeyState{Code: code}
		k.states[code] = ks
	}
	ks.Consumed = false
	if !validTransition(ks.State, state) {
		k.logger.Warn("unexpected key transition", "code", code, "from", ks.State, "to", state)
	}
	ks.State = state

	switch state {
	case keys.Down:
		ks.DefeatRelease = false
		ks.ConsumeUntilRelease = false
		ks.cancelHold()
		ks.hold = k.fast.Schedule(k.holdDelay, func() {
			if cur, ok := k.states[code]; ok && cur == ks && ks.State == keys.Down {
				k.handle(code, keys.Held, ev)
			}
		})
	case keys.Up:
		ks.cancelHold()
	}
	return true
}

// collect forgets every key once all tracked keys are released.
func (k *Keyboard) collect() {
	if len(k.states) == 0 {
		return
	}
	for _, s := range k.states {
		if s.State != keys.Up {
			return
		}
	}
	for _, s := range k.states {
		s.cancelHold()
	}
	k.states = map[keys.Code]*KeyState{}
}

func (k *Keyboard) passthrough(code keys.Code, state keys.State, ev keys.Event) {
	target, ok := macro.ForEvent(code)
	if !ok {
		k.logger.Debug("no target for unhandled event", "code", code)
		return
	}
	k.logger.Debug("not handled, passing on", "code", code, "state", state, "value", ev.Value, "target", target)
	k.Emit(target, code, ev.Value)
}

// group splits the tracked keys of seq by transition. UP keys with a pending
// defeat-release are left out.
func (k *Keyboard) group(seq keys.Sequence, eligible func(*KeyState) bool) (down, up, held []*KeyState) {
	for _, c := range seq.Codes {
		ks, ok := k.states[c]
		if !ok || !eligible(ks) {
			continue
		}
		switch ks.State {
		case keys.Down:
			down = append(down, ks)
		case keys.Up:
			if !ks.DefeatRelease {
				up = append(up, ks)
			}
		case keys.Held:
			held = append(held, ks)
		}
	}
	return down, up, held
}

func notConsumed(ks *KeyState) bool      { return !ks.Consumed }
func notConsumedState(ks *KeyState) bool { return !ks.ConsumedState() }

func (k *Keyboard) handleRemaps(bank *macro.Bank, ev keys.Event) bool {
	handled := false
	for _, m := range bank.UInputMacros() {
		n := m.ActivatedBy.Len()
		if n == 0 {
			continue
		}
		down, up, held := k.group(m.ActivatedBy, notConsumed)
		if len(down) == n {
			k.handleRemap(bank, m, keys.Down, down, ev)
			handled = true
		}
		if len(up) == n {
			k.handleRemap(bank, m, keys.Up, up, ev)
			handled = true
		}
		if len(held) == n {
			k.handleRemap(bank, m, keys.Held, held, ev)
			handled = true
		}
	}
	return handled
}

func (k *Keyboard) handleNormalMacros(bank *macro.Bank, ev keys.Event) bool {
	handled := false
	for _, m := range bank.NormalHeldMacros() {
		n := m.ActivatedBy.Len()
		if n == 0 {
			continue
		}
		var held []*KeyState
		for _, c := range m.ActivatedBy.Codes {
			if ks, ok := k.states[c]; ok && !ks.ConsumedState() && ks.State == keys.Held {
				held = append(held, ks)
			}
		}
		if len(held) == n {
			handled = k.handleMacro(m, keys.Held, held, ev) || handled
		}
	}

	for _, m := range bank.NormalMacros() {
		n := m.ActivatedBy.Len()
		if n == 0 {
			continue
		}
		down, up, held := k.group(m.ActivatedBy, notConsumedState)
		if len(up) == n {
			handled = k.handleMacro(m, keys.Up, up, ev) || handled
		}
		if len(down) == n {
			handled = k.handleMacro(m, keys.Down, down, ev) || handled
		}
		if len(held) == n {
			handled = k.handleMacro(m, keys.Held, held, ev) || handled
		}
	}
	return handled
}

// handleActions fires the device action bindings whose keys are all in the
// bound state.
func (k *Keyboard) handleActions() bool {
	handled := false
	for _, b := range k.Bindings() {
		codes := b.Keys()
		if len(codes) == 0 {
			continue
		}
		var matched []*KeyState
		for _, c := range codes {
			if ks, ok := k.states[c]; ok && ks.State == b.State() && !ks.ConsumedState() {
				matched = append(matched, ks)
			}
		}
		if len(matched) != len(codes) {
			continue
		}
		k.logger.Debug("action binding matched", "action", b.Action, "sequence", b.Sequence)
		k.actionPerformed(b)
		consumeUntilRelease(matched)
		handled = true
	}
	return handled
}

func (k *Keyboard) repeating(id string) bool {
	_, ok := k.repeats[id]
	return ok
}

// startRepeat adds id to the repeat set and runs fire every interval while
// it stays there. The first run happens immediately when now is set.
func (k *Keyboard) startRepeat(id string, interval time.Duration, now bool, fire func()) {
	if k.repeating(id) {
		return
	}
	r := &repeat{}
	k.repeats[id] = r
	var tick func()
	tick = func() {
		if k.repeats[id] != r {
			return
		}
		fire()
		if k.repeats[id] == r {
			r.timer = k.fast.Schedule(interval, tick)
		}
	}
	if now {
		tick()
		return
	}
	r.timer = k.fast.Schedule(interval, tick)
}

// latch marks id as repeating without a timer.
func (k *Keyboard) latch(id string) {
	if !k.repeating(id) {
		k.repeats[id] = &repeat{}
	}
}

func (k *Keyboard) stopRepeat(id string) {
	if r, ok := k.repeats[id]; ok {
		r.timer.Cancel()
		delete(k.repeats, id)
	}
}
