package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/macrokey/internal/log"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/storage"
	"github.com/Alia5/macrokey/system"
)

const uid = "0003:046d:c52b:0111:event3"

func newStore(t *testing.T) *storage.JSON {
	t.Helper()
	store, err := storage.NewJSON(t.TempDir(), log.Discard())
	require.NoError(t, err)
	return store
}

func TestCreateProfile(t *testing.T) {
	store := newStore(t)

	first, err := createProfile(store, uid, "Games", 10)
	require.NoError(t, err)
	b, ok := first.LookupBank(0)
	require.True(t, ok)
	assert.Equal(t, system.DefaultName, b.Name)

	active, err := store.LoadActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active)
	def, err := store.LoadDefaultProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, first.ID, def)

	second, err := createProfile(store, uid, "Work", 10)
	require.NoError(t, err)
	active, err = store.LoadActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active, "only the first profile becomes active")
	assert.NotEqual(t, first.ID, second.ID)

	_, err = createProfile(store, uid, "Work", 10)
	assert.Error(t, err)
}

func TestFindProfileByIDOrName(t *testing.T) {
	store := newStore(t)
	p, err := createProfile(store, uid, "Games", 10)
	require.NoError(t, err)

	byID, err := findProfile(store, uid, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Games", byID.Name)

	byName, err := findProfile(store, uid, "Games")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	_, err = findProfile(store, uid, "nope")
	assert.ErrorIs(t, err, storage.ErrProfileNotFound)
}

func TestActivateProfile(t *testing.T) {
	store := newStore(t)
	_, err := createProfile(store, uid, "Games", 10)
	require.NoError(t, err)
	work, err := createProfile(store, uid, "Work", 10)
	require.NoError(t, err)
	_, err = work.AddBank("Second", 10)
	require.NoError(t, err)
	require.NoError(t, store.SaveProfile(work))

	require.NoError(t, activateProfile(store, uid, "Work", 1))
	active, err := store.LoadActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, work.ID, active)
	bank, err := store.LoadActiveBank(work)
	require.NoError(t, err)
	assert.Equal(t, 1, bank)

	assert.Error(t, activateProfile(store, uid, "Work", 7), "missing bank")

	require.NoError(t, store.SetLocked(uid, true))
	assert.ErrorIs(t, activateProfile(store, uid, "Games", -1), system.ErrProfileLocked)
}

func TestListProfiles(t *testing.T) {
	store := newStore(t)
	games, err := createProfile(store, uid, "Games", 10)
	require.NoError(t, err)
	work, err := createProfile(store, uid, "Work", 10)
	require.NoError(t, err)
	work.IncludeApplications = []string{"code"}
	require.NoError(t, store.SaveProfile(work))

	var buf bytes.Buffer
	require.NoError(t, listProfiles(&buf, store, uid))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], games.ID)
	assert.Contains(t, lines[1], "active default")
	assert.Contains(t, lines[2], work.ID)
	assert.Contains(t, lines[2], "app")
}

func TestProfileExport(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewJSON(root, log.Discard())
	require.NoError(t, err)
	p, err := createProfile(store, uid, "Games", 10)
	require.NoError(t, err)
	p.Bank(0).Add(macro.NewSimple(keys.NewSequence(keys.Up, keys.MustParse("KEY_A")), "hello"))
	require.NoError(t, store.SaveProfile(p))

	dest := filepath.Join(t.TempDir(), "out", "games.yaml")
	c := &ProfileExport{
		ProfileTarget: ProfileTarget{Device: uid, Storage: root},
		Profile:       "Games",
		Output:        dest,
	}
	require.NoError(t, c.Run(log.Discard()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "Games", doc["name"])
	assert.NotEqual(t, p.ID, doc["id"])
}

func TestWriteDevices(t *testing.T) {
	rows := []deviceRow{
		{Path: "/dev/input/event3", Name: "Keypad", UID: uid, Joystick: true, Keys: 12},
		{Path: "/dev/input/event10", Name: "Mouse"},
	}
	tests := []struct {
		name         string
		tty, details bool
		want         []string
	}{
		{name: "pipe", want: []string{"/dev/input/event3\tKeypad", "/dev/input/event10\tMouse"}},
		{name: "pipe details", details: true, want: []string{"/dev/input/event3\tKeypad\t" + uid + "\ttrue\t12", "/dev/input/event10\tMouse\t\tfalse\t0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeDevices(&buf, rows, tt.tty, tt.details))
			assert.Equal(t, tt.want, strings.Split(strings.TrimSpace(buf.String()), "\n"))
		})
	}

	t.Run("terminal", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeDevices(&buf, rows, true, false))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "PATH"))
		assert.NotContains(t, buf.String(), "\t")
	})
}

func TestConfigInitDaemon(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "daemon.json")
	c := &ConfigInit{Command: "daemon", Format: "json", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "x11", doc["desktop"])
	assert.Equal(t, "2s", doc["holdDelay"])
	assert.Equal(t, "/dev/uinput", doc["uinput"])
	assert.Equal(t, []any{}, doc["device"])
	assert.Equal(t, true, doc["grab"])

	assert.Error(t, c.Run(), "existing file without --force")
	c.Force = true
	assert.NoError(t, c.Run())
}

func TestConfigInitComments(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "daemon.yaml")
		require.NoError(t, (&ConfigInit{Command: "daemon", Format: "yml", Output: dest}).Run())

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# Text injection backend (one of: x11, uinput, none)")
		assert.Less(t, strings.Index(string(data), "device:"), strings.Index(string(data), "watch:"), "flags keep their order")

		var doc map[string]any
		require.NoError(t, yaml.Unmarshal(data, &doc))
		assert.Equal(t, "keys", doc["joystick"])
		assert.Equal(t, 20, doc["calibration"])
		assert.Equal(t, "500ms", doc["windowPoll"])
	})
	t.Run("toml", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "daemon.toml")
		require.NoError(t, (&ConfigInit{Command: "daemon", Format: "toml", Output: dest}).Run())

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# What device joysticks drive (one of: keys, joystick, digital_joystick, mouse)")

		tree, err := toml.LoadBytes(data)
		require.NoError(t, err)
		assert.Equal(t, "x11", tree.Get("desktop"))
		assert.Equal(t, int64(10), tree.Get("banks"))
		assert.Equal(t, true, tree.Get("notify"))
	})
	t.Run("profile", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "profile.json")
		require.NoError(t, (&ConfigInit{Command: "profile", Format: "json", Output: dest}).Run())

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, map[string]any{"device": "", "storage": ""}, doc)
	})
}

func TestJoystickMode(t *testing.T) {
	tests := []struct {
		in      string
		want    macro.TargetType
		wantErr bool
	}{
		{in: "keys", want: macro.TargetNothing},
		{in: "", want: macro.TargetNothing},
		{in: "mouse", want: macro.TargetMouse},
		{in: "digital_joystick", want: macro.TargetDigitalJoystick},
		{in: "wheel", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := joystickMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "macrokey.lock")
	unlock, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	unlock()
	unlock, err = acquireLock(path)
	require.NoError(t, err)
	unlock()
}
