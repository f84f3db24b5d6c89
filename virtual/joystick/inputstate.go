package joystick

// InputState is the state of the virtual joystick. Axes are in the
// JoystickMin..JoystickMax range.
type InputState struct {
	// Buttons holds the pressed BTN_ codes, bit (code - BTN_MISC).
	Buttons [12]uint8
	X, Y    int32
	RX, RY  int32
}

const firstButton = 0x100

func (st *InputState) setButton(code uint16, down bool) bool {
	i := int(code) - firstButton
	if i < 0 || i/8 >= len(st.Buttons) {
		return false
	}
	if down {
		st.Buttons[i/8] |= 1 << (i % 8)
	} else {
		st.Buttons[i/8] &^= 1 << (i % 8)
	}
	return true
}

// IsPressed reports whether the button code is held.
func (st *InputState) IsPressed(code uint16) bool {
	i := int(code) - firstButton
	if i < 0 || i/8 >= len(st.Buttons) {
		return false
	}
	return st.Buttons[i/8]&(1<<(i%8)) != 0
}

// Pressed lists the held button codes.
func (st *InputState) Pressed() []uint16 {
	var out []uint16
	for i := range len(st.Buttons) * 8 {
		if st.Buttons[i/8]&(1<<(i%8)) != 0 {
			out = append(out, uint16(i+firstButton))
		}
	}
	return out
}
