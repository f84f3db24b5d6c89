package keys_test

import (
	"encoding/json"
	"testing"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/macrokey/keys"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    keys.Code
		wantErr bool
	}{
		{name: "key", in: "KEY_A", want: keys.Key(evdev.KEY_A)},
		{name: "lower case", in: "key_leftctrl", want: keys.Key(evdev.KEY_LEFTCTRL)},
		{name: "button", in: "BTN_LEFT", want: keys.Key(evdev.BTN_LEFT)},
		{name: "absolute axis", in: "ABS_X", want: keys.Abs(evdev.ABS_X)},
		{name: "relative axis", in: "REL_WHEEL", want: keys.Rel(evdev.REL_WHEEL)},
		{name: "numeric fallback", in: "KEY_700", want: keys.Key(700)},
		{name: "unknown type", in: "FOO_A", wantErr: true},
		{name: "no separator", in: "A", wantErr: true},
		{name: "unknown name", in: "KEY_NOPE", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keys.Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCodeClassification(t *testing.T) {
	assert.True(t, keys.Key(evdev.BTN_LEFT).IsButton())
	assert.True(t, keys.Key(evdev.BTN_DPAD_UP).IsButton())
	assert.False(t, keys.Key(evdev.KEY_A).IsButton())
	assert.False(t, keys.Abs(evdev.ABS_X).IsButton())
	assert.True(t, keys.Key(evdev.KEY_A).IsKey())
	assert.False(t, keys.Rel(evdev.REL_X).IsKey())
}

func TestSequenceString(t *testing.T) {
	seq := keys.NewSequence(keys.Up, keys.Key(evdev.KEY_A), keys.Key(evdev.KEY_B))
	assert.Equal(t, "KEY_A_KEY_B_UP", seq.String())
	assert.Equal(t, "KEY_A_KEY_B_HELD", seq.WithState(keys.Held).String())
	assert.Equal(t, "DOWN", keys.NewSequence(keys.Down).String())
}

func TestSequenceEquality(t *testing.T) {
	a := keys.NewSequence(keys.Down, keys.Key(evdev.KEY_A), keys.Key(evdev.KEY_B))
	b := keys.NewSequence(keys.Down, keys.Key(evdev.KEY_B), keys.Key(evdev.KEY_A))

	assert.False(t, a.Equal(b), "order matters for identity")
	assert.True(t, a.SameKeys(b))
	assert.False(t, a.Equal(a.WithState(keys.Up)))
	assert.True(t, a.Equal(a.Clone()))
}

func TestSequenceJSON(t *testing.T) {
	seq := keys.NewSequence(keys.Held, keys.Key(evdev.KEY_F1), keys.Key(evdev.KEY_B))

	data, err := json.Marshal(seq)
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"HELD","keys":["KEY_F1","KEY_B"]}`, string(data))

	var back keys.Sequence
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, seq.Equal(back))

	var defaulted keys.Sequence
	require.NoError(t, json.Unmarshal([]byte(`{"keys":["KEY_A"]}`), &defaulted))
	assert.Equal(t, keys.Down, defaulted.State)

	var bad keys.Sequence
	assert.Error(t, json.Unmarshal([]byte(`{"state":"SIDEWAYS","keys":[]}`), &bad))
}

func TestStateForValue(t *testing.T) {
	s, ok := keys.StateForValue(1)
	assert.True(t, ok)
	assert.Equal(t, keys.Down, s)
	s, ok = keys.StateForValue(0)
	assert.True(t, ok)
	assert.Equal(t, keys.Up, s)
	_, ok = keys.StateForValue(2)
	assert.False(t, ok)
}
