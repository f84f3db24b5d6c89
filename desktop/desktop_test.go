package desktop

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		text string
		want Key
		ok   bool
	}{
		{"a", Key{evdev.KEY_A, false, "a"}, true},
		{"A", Key{evdev.KEY_A, true, "a"}, true},
		{"!", Key{evdev.KEY_1, true, "1"}, true},
		{"/", Key{evdev.KEY_SLASH, false, "/"}, true},
		{"\r", Key{evdev.KEY_ENTER, false, "enter"}, true},
		{"\x1b", Key{evdev.KEY_ESC, false, "esc"}, true},
		{"ctrl", Key{evdev.KEY_LEFTCTRL, false, "ctrl"}, true},
		{"F5", Key{evdev.KEY_F5, false, "f5"}, true},
		{"KEY_HOME", Key{evdev.KEY_HOME, false, "home"}, true},
		{"é", Key{}, false},
		{"nosuchkey", Key{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Lookup(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestX11TypeString(t *testing.T) {
	var calls []string
	x := NewX11(slog.Default())
	x.toggle = func(key string, args ...any) error {
		calls = append(calls, fmt.Sprint(key, args))
		return nil
	}

	require.NoError(t, x.TypeString("B", true))
	require.NoError(t, x.TypeString("B", false))
	require.NoError(t, x.TypeString("é", true), "unmapped text is skipped")
	assert.Equal(t, []string{"b[down shift]", "b[up shift]"}, calls)

	x.toggle = func(string, ...any) error { return errors.New("no display") }
	assert.Error(t, x.TypeString("a", true))
}

type fakeBonding struct {
	keys  []int
	shift bool
	ops   []string
}

func (f *fakeBonding) SetKeys(keys ...int) { f.keys = keys }
func (f *fakeBonding) HasSHIFT(b bool)     { f.shift = b }
func (f *fakeBonding) Clear()              { f.keys, f.shift = nil, false }
func (f *fakeBonding) Press() error {
	f.ops = append(f.ops, fmt.Sprintf("+%v %t", f.keys, f.shift))
	return nil
}
func (f *fakeBonding) Release() error {
	f.ops = append(f.ops, fmt.Sprintf("-%v %t", f.keys, f.shift))
	return nil
}

func TestUInputTypeString(t *testing.T) {
	f := &fakeBonding{}
	u := &UInput{logger: slog.Default(), kb: f}
	require.NoError(t, u.TypeString("?", true))
	require.NoError(t, u.TypeString("?", false))
	require.NoError(t, u.TypeString("\t", true))
	assert.Equal(t, []string{"+[53] true", "-[53] true", "+[15] false"}, f.ops)
}

func TestNew(t *testing.T) {
	io, err := New("none", nil)
	require.NoError(t, err)
	assert.NoError(t, io.TypeString("a", true))

	_, err = New("wayland-magic", nil)
	assert.Error(t, err)
}
