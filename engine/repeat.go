package engine

import (
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

// handleMacro runs the repeat-mode state machine of a normal macro for one
// grouping of its keys. It returns false only when an action effect declined
// the binding.
func (k *Keyboard) handleMacro(m *macro.Macro, state keys.State, ks []*KeyState, ev keys.Event) bool {
	consume(ks)
	id := m.ActivatedBy.String()
	interval := m.RepeatInterval(DefaultRepeatInterval)
	activation := m.State()
	fire := func() { k.process(m, ks, ev) }

	switch {
	case m.RepeatMode == macro.RepeatToggle && state == keys.Up:
		if k.repeating(id) {
			k.logger.Debug("stopping toggled macro", "macro", m.DisplayName())
			k.stopRepeat(id)
			return true
		}
		k.logger.Debug("starting toggled macro", "macro", m.DisplayName(), "interval", interval)
		k.startRepeat(id, interval, false, fire)
		return true

	case m.RepeatMode == macro.RepeatWhileHeld && state != keys.Down:
		if state == keys.Up && k.repeating(id) {
			k.stopRepeat(id)
			return true
		}
		if state == keys.Held {
			if !k.repeating(id) {
				k.startRepeat(id, interval, true, fire)
			}
			return true
		}
		if activation != keys.Down {
			return k.process(m, ks, ev)
		}
		return true
	}

	switch {
	case state == keys.Down && activation == keys.Down:
		return k.process(m, ks, ev)
	case state == keys.Up && activation == keys.Up:
		return k.process(m, ks, ev)
	case state == keys.Held && activation == keys.Held:
		handled := k.process(m, ks, ev)
		defeatRelease(ks)
		return handled
	}
	return true
}

// handleRemap drives the virtual key of a remap macro. A press of the
// activation keys is a press of the virtual key, a release is a release,
// unless the repeat mode or a competing binding says otherwise.
func (k *Keyboard) handleRemap(bank *macro.Bank, m *macro.Macro, state keys.State, ks []*KeyState, ev keys.Event) {
	consume(ks)
	id := m.ActivatedBy.String()
	activation := m.State()
	explicit := m.HasRepeatDelay()
	typeKey := func() { k.typeRemap(m, ev) }

	switch state {
	case keys.Up:
		switch {
		case m.RepeatMode == macro.RepeatWhileHeld && k.repeating(id):
			k.stopRepeat(id)
			k.releaseRemap(m)
		case m.RepeatMode == macro.RepeatWhileHeld && !explicit:
			if activation != keys.Held && k.competing(bank, m) {
				typeKey()
			} else {
				k.releaseRemap(m)
			}
		case m.RepeatMode == macro.RepeatNone && activation == keys.Up:
			typeKey()
		case m.RepeatMode == macro.RepeatToggle && activation == keys.Up:
			if k.repeating(id) {
				k.stopRepeat(id)
			} else {
				k.startRepeat(id, m.RepeatInterval(SimulatedInputDelay), true, typeKey)
			}
		default:
			k.releaseRemap(m)
		}

	case keys.Down:
		if k.repeating(id) {
			switch {
			case m.RepeatMode == macro.RepeatToggle && explicit:
				k.stopRepeat(id)
				defeatRelease(ks)
			case activation == keys.Down:
				k.releaseRemap(m)
				k.stopRepeat(id)
				defeatRelease(ks)
			}
			return
		}
		switch m.RepeatMode {
		case macro.RepeatToggle:
			if explicit {
				defeatRelease(ks)
				k.startRepeat(id, m.RepeatInterval(SimulatedInputDelay), true, typeKey)
			} else if activation == keys.Down {
				defeatRelease(ks)
				k.latch(id)
				k.pressRemap(m, ev)
			}
		case macro.RepeatNone:
			if activation == keys.Down {
				typeKey()
			}
		default:
			if explicit {
				typeKey()
			} else if !k.competing(bank, m) {
				k.pressRemap(m, ev)
			}
		}

	case keys.Held:
		switch {
		case m.RepeatMode == macro.RepeatWhileHeld && explicit:
			k.startRepeat(id, m.RepeatInterval(SimulatedInputDelay), true, typeKey)
		case m.RepeatMode == macro.RepeatWhileHeld && activation == keys.Held:
			k.startRepeat(id, SimulatedInputDelay, true, typeKey)
		case m.RepeatMode == macro.RepeatNone && activation == keys.Held:
			typeKey()
			defeatRelease(ks)
		}
	}
}

// competing reports whether the bank also binds the remap's keys on UP or
// HELD, in which case the virtual press waits for the outcome.
func (k *Keyboard) competing(bank *macro.Bank, m *macro.Macro) bool {
	return bank.Contains(m.ActivatedBy.WithState(keys.Up)) || bank.Contains(m.ActivatedBy.WithState(keys.Held))
}
