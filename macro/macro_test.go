package macro_test

import (
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

var (
	keyA = keys.Key(evdev.KEY_A)
	keyB = keys.Key(evdev.KEY_B)
	keyC = keys.Key(evdev.KEY_C)
)

func TestMacroKind(t *testing.T) {
	seq := keys.NewSequence(keys.Down, keyA)
	tests := []struct {
		name string
		m    *macro.Macro
		want macro.Kind
	}{
		{"keyboard remap", macro.NewRemap(seq, macro.TargetKeyboard, keyB), macro.KindRemap},
		{"joystick remap", macro.NewRemap(seq, macro.TargetJoystick, keys.Abs(evdev.ABS_X)), macro.KindRemap},
		{"command", macro.NewCommand(seq, "true"), macro.KindCommand},
		{"simple", macro.NewSimple(seq, "hi"), macro.KindSimple},
		{"script", macro.NewScript(seq, "delay 10"), macro.KindScript},
		{"action", macro.NewAction(seq, "cycle-bank"), macro.KindAction},
		{"noop", macro.NewNoop(seq), macro.KindNoop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.Kind())
			assert.Equal(t, tt.want == macro.KindRemap, tt.m.IsUInput())
			assert.Equal(t, macro.RepeatWhileHeld, tt.m.RepeatMode)
			assert.False(t, tt.m.HasRepeatDelay())
		})
	}
}

func TestMacroCloneIsDeep(t *testing.T) {
	m := macro.NewScript(keys.NewSequence(keys.Up, keyA), "press a", "release a")
	c := m.Clone()
	c.Script[0] = "delay 1"
	c.ActivatedBy.Codes[0] = keyB
	assert.Equal(t, "press a", m.Script[0])
	assert.Equal(t, keyA, m.ActivatedBy.Codes[0])
}

func TestRepeatInterval(t *testing.T) {
	m := macro.NewNoop(keys.NewSequence(keys.Down, keyA))
	assert.Equal(t, 100*time.Millisecond, m.RepeatInterval(100*time.Millisecond))
	m.RepeatDelay = 0.25
	assert.Equal(t, 250*time.Millisecond, m.RepeatInterval(100*time.Millisecond))
}

func TestParseTargetType(t *testing.T) {
	for _, tt := range []macro.TargetType{
		macro.TargetNothing, macro.TargetAction, macro.TargetCommand, macro.TargetDigitalJoystick,
		macro.TargetJoystick, macro.TargetKeyboard, macro.TargetMouse, macro.TargetScript, macro.TargetSimple,
	} {
		got, err := macro.ParseTargetType(tt.String())
		require.NoError(t, err)
		assert.Equal(t, tt, got)
	}
	got, err := macro.ParseTargetType("keyboard")
	require.NoError(t, err)
	assert.Equal(t, macro.TargetKeyboard, got)
	_, err = macro.ParseTargetType("printer")
	assert.Error(t, err)
}

func TestForEvent(t *testing.T) {
	tests := []struct {
		name string
		code keys.Code
		want macro.TargetType
		ok   bool
	}{
		{"key", keyA, macro.TargetKeyboard, true},
		{"mouse button", keys.Key(evdev.BTN_LEFT), macro.TargetMouse, true},
		{"gamepad button", keys.Key(evdev.BTN_SOUTH), macro.TargetJoystick, true},
		{"relative", keys.Rel(evdev.REL_X), macro.TargetMouse, true},
		{"absolute", keys.Abs(evdev.ABS_Y), macro.TargetJoystick, true},
		{"sync", keys.Code{Type: evdev.EV_SYN}, macro.TargetNothing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := macro.ForEvent(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDelays(t *testing.T) {
	d := macro.Delays{Press: time.Second, Release: 2 * time.Second}
	assert.Zero(t, d.PressDelay())
	assert.Zero(t, d.ReleaseDelay())
	d.Fixed = true
	assert.Equal(t, time.Second, d.PressDelay())
	assert.Equal(t, 2*time.Second, d.ReleaseDelay())
}
