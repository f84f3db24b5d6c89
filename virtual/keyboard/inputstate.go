package keyboard

// InputState tracks the pressed keys of the virtual keyboard. Codes up to
// KEY_MAX fit the 768-bit bitmap.
type InputState struct {
	KeyBitmap [96]uint8
}

// Press marks code as pressed.
func (st *InputState) Press(code uint16) {
	if int(code)/8 < len(st.KeyBitmap) {
		st.KeyBitmap[code/8] |= 1 << (code % 8)
	}
}

// Release marks code as released.
func (st *InputState) Release(code uint16) {
	if int(code)/8 < len(st.KeyBitmap) {
		st.KeyBitmap[code/8] &^= 1 << (code % 8)
	}
}

// IsPressed reports whether code is pressed.
func (st *InputState) IsPressed(code uint16) bool {
	if int(code)/8 >= len(st.KeyBitmap) {
		return false
	}
	return st.KeyBitmap[code/8]&(1<<(code%8)) != 0
}

// Pressed lists the pressed codes in ascending order.
func (st *InputState) Pressed() []uint16 {
	var out []uint16
	for i := range len(st.KeyBitmap) * 8 {
		if st.KeyBitmap[i/8]&(1<<uint(i%8)) != 0 {
			out = append(out, uint16(i))
		}
	}
	return out
}
