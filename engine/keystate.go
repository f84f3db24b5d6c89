package engine

import "github.com/Alia5/macrokey/keys"

// KeyState is the tracked state of one physical key.
type KeyState struct {
	Code  keys.Code
	State keys.State
	// Consumed is set when a macro used the key in the current transition.
	Consumed bool
	// ConsumeUntilRelease hides the key from matching until it is released.
	ConsumeUntilRelease bool
	// DefeatRelease suppresses the effects of the next UP.
	DefeatRelease bool

	hold *Timer
}

// ConsumedState reports whether the key is unavailable for normal macros.
func (k KeyState) ConsumedState() bool { return k.Consumed || k.ConsumeUntilRelease }

func (k *KeyState) cancelHold() {
	k.hold.Cancel()
	k.hold = nil
}

func validTransition(from, to keys.State) bool {
	switch to {
	case keys.Up:
		return from == keys.Down || from == keys.Held
	case keys.Held:
		return from == keys.Down || from == keys.Held
	case keys.Down:
		return from == keys.None || from == keys.Up || from == keys.Down || from == keys.Held
	}
	return false
}

func consume(ks []*KeyState) {
	for _, k := range ks {
		k.Consumed = true
	}
}

func defeatRelease(ks []*KeyState) {
	for _, k := range ks {
		k.DefeatRelease = true
		k.cancelHold()
	}
}

func consumeUntilRelease(ks []*KeyState) {
	for _, k := range ks {
		k.ConsumeUntilRelease = true
	}
}
