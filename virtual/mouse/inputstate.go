package mouse

// Button bits of InputState.Buttons.
const (
	ButtonLeft uint8 = 1 << iota
	ButtonRight
	ButtonMiddle
)

// InputState is the button state of the virtual mouse plus the motion
// written since the last Reset.
type InputState struct {
	Buttons uint8
	// DX, DY, Wheel and Pan accumulate relative motion.
	DX, DY     int32
	Wheel, Pan int32
}

// Reset clears the accumulated motion. Buttons persist.
func (m *InputState) Reset() {
	m.DX, m.DY, m.Wheel, m.Pan = 0, 0, 0, 0
}
