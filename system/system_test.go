package system_test

import (
	"sync"
	"testing"
	"time"

	"github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/macrokey/internal/log"
	th "github.com/Alia5/macrokey/internal/testing"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/storage"
	"github.com/Alia5/macrokey/system"
	"github.com/Alia5/macrokey/window"
)

const uid = "0003:1532:0226:0111:event7"

var (
	keyA  = keys.Key(evdev.KEY_A)
	keyB  = keys.Key(evdev.KEY_B)
	keyC  = keys.Key(evdev.KEY_C)
	keyF1 = keys.Key(evdev.KEY_F1)
)

type notes struct {
	mu  sync.Mutex
	got []string
}

func (n *notes) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, title+": "+message)
	return nil
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.got...)
}

type fixture struct {
	sys   *system.System
	store *storage.JSON
	out   *th.Emitter
	notes *notes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewJSON(t.TempDir(), log.Discard())
	require.NoError(t, err)
	f := &fixture{store: store, out: &th.Emitter{}, notes: &notes{}}
	f.sys = system.New(system.Config{
		Store:     store,
		Output:    f.out,
		Desktop:   &th.Desktop{},
		Notifier:  f.notes,
		HoldDelay: time.Hour,
		Logger:    log.Discard(),
	})
	t.Cleanup(f.sys.Close)
	return f
}

func (f *fixture) add(t *testing.T, banks int) {
	t.Helper()
	_, err := f.sys.AddDevice(system.Device{UID: uid, Name: "pad", Banks: banks,
		SupportedKeys: []keys.Code{keyA, keyB, keyC}})
	require.NoError(t, err)
}

func (f *fixture) bank(t *testing.T) int {
	t.Helper()
	b, err := f.sys.ActiveBank(uid)
	require.NoError(t, err)
	return b.Number
}

func TestAddDeviceBootstrapsDefaultProfile(t *testing.T) {
	f := newFixture(t)
	changed := 0
	f.sys.AddSystemListener(system.SystemFunc(func() { changed++ }))
	f.add(t, 0)

	p, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, system.DefaultName, p.Name)
	require.Len(t, p.Banks(), 1)
	assert.Equal(t, system.DefaultName, p.Banks()[0].Name)
	assert.Equal(t, 1, changed)

	def, err := f.sys.DefaultProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, p.ID, def.ID)
	id, err := f.store.LoadActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)
	id, err = f.store.LoadDefaultProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)

	_, err = f.sys.AddDevice(system.Device{UID: uid})
	assert.ErrorIs(t, err, system.ErrDeviceRegistered)

	require.NoError(t, f.sys.RemoveDevice(uid))
	assert.ErrorIs(t, f.sys.RemoveDevice(uid), system.ErrDeviceNotRegistered)
	_, err = f.sys.ActiveProfile(uid)
	assert.ErrorIs(t, err, system.ErrDeviceNotRegistered)

	f.add(t, 0)
	again, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "re-adding restores the stored profile")
	assert.Equal(t, 1, changed)
}

func TestAddDeviceRestoresActiveBank(t *testing.T) {
	f := newFixture(t)
	p := macro.NewProfile(uid, "stored")
	p.Bank(0)
	p.Bank(2).Name = "two"
	require.NoError(t, f.store.SaveProfile(p))
	require.NoError(t, f.store.SetActiveProfile(p))
	require.NoError(t, f.store.SetActiveBank(p, 2))

	f.add(t, 0)
	b, err := f.sys.ActiveBank(uid)
	require.NoError(t, err)
	assert.Equal(t, "two", b.Name)
}

func TestActionsRegistry(t *testing.T) {
	a := system.NewActions()
	ran := 0
	act := system.Action{ID: "hello", Perform: func(macro.ActionBinding) bool { ran++; return true }}
	require.NoError(t, a.Register(act))
	assert.ErrorIs(t, a.Register(act), system.ErrActionExists)
	assert.Error(t, a.Register(system.Action{ID: "empty"}))

	assert.True(t, a.Invoke(macro.ActionBinding{Action: "hello"}))
	assert.False(t, a.Invoke(macro.ActionBinding{Action: "unknown"}))
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"hello"}, a.List())

	assert.True(t, a.Remove("hello"))
	assert.False(t, a.Remove("hello"))
	assert.Empty(t, a.List())
}

func TestBuiltinActionsRegistered(t *testing.T) {
	f := newFixture(t)
	ids := f.sys.Actions().List()
	for _, id := range []string{"cycle-bank", "next-bank", "previous-bank", "bank-0", "bank-9"} {
		assert.Contains(t, ids, id)
	}
}

func TestBankActions(t *testing.T) {
	tests := []struct {
		name    string
		start   int
		action  string
		want    int
		handled bool
	}{
		{"next", 0, system.ActionNextBank, 1, true},
		{"next at last bank", 2, system.ActionNextBank, 2, false},
		{"previous", 2, system.ActionPreviousBank, 1, true},
		{"previous at first bank", 0, system.ActionPreviousBank, 0, false},
		{"cycle", 1, system.ActionCycleBank, 2, true},
		{"cycle wraps", 2, system.ActionCycleBank, 0, true},
		{"direct", 0, "bank-2", 2, true},
		{"direct to current", 2, "bank-2", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add(t, 3)
			p, err := f.sys.ActiveProfile(uid)
			require.NoError(t, err)
			require.NoError(t, f.sys.SetActiveBank(p, tt.start))

			handled := f.sys.Actions().Invoke(macro.NewActionBinding(uid, tt.action, keys.NewSequence(keys.Up, keyF1)))
			assert.Equal(t, tt.handled, handled)
			assert.Equal(t, tt.want, f.bank(t))

			n, err := f.store.LoadActiveBank(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestActionMacroSwitchesBank(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	var banks []int
	f.sys.AddActiveBankListener(system.ActiveBankFunc(func(_ string, b *macro.Bank) {
		banks = append(banks, b.Number)
	}))

	p, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	p.Bank(0).Add(macro.NewAction(keys.NewSequence(keys.Up, keyF1), system.ActionNextBank))
	require.NoError(t, f.sys.SaveProfile(p))

	k, err := f.sys.Keyboard(uid)
	require.NoError(t, err)
	k.KeyReceived(keyF1, keys.Down, keys.Event{Code: keyF1, Value: 1})
	k.KeyReceived(keyF1, keys.Up, keys.Event{Code: keyF1, Value: 0})
	f.sys.Fast().Flush()

	assert.Equal(t, 1, f.bank(t))
	assert.Equal(t, []int{1}, banks)
	assert.NotContains(t, f.out.Events(), th.Emitted{Target: macro.TargetKeyboard, Code: keyF1, Value: 0},
		"the action consumes the release")
	assert.Contains(t, f.notes.all(), system.DefaultName+": Bank 1")
}

func TestSetActiveProfile(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	var switched []string
	f.sys.AddActiveProfileListener(system.ActiveProfileFunc(func(_ string, p *macro.Profile) {
		switched = append(switched, p.Name)
	}))

	other, err := f.sys.CreateProfile(uid, "Other")
	require.NoError(t, err)
	require.NoError(t, f.store.SetActiveBank(other, 0))

	require.NoError(t, f.sys.SetLocked(uid, true))
	assert.ErrorIs(t, f.sys.SetActiveProfile(other), system.ErrProfileLocked)
	require.NoError(t, f.sys.SetLocked(uid, false))

	require.NoError(t, f.sys.SetActiveProfile(other))
	active, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, "Other", active.Name)
	assert.Equal(t, []string{"Other"}, switched)

	require.NoError(t, f.sys.SetActiveProfile(other))
	assert.Len(t, switched, 1, "activating the active profile is a no-op")
}

func TestRemoveProfile(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	def, err := f.sys.DefaultProfile(uid)
	require.NoError(t, err)
	assert.ErrorIs(t, f.sys.RemoveProfile(def), storage.ErrDefaultProfile)

	other, err := f.sys.CreateProfile(uid, "Other")
	require.NoError(t, err)
	require.NoError(t, f.sys.SetActiveProfile(other))
	require.NoError(t, f.sys.RemoveProfile(other))

	active, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, def.ID, active.ID)
	n, err := f.sys.NumberOfProfiles(uid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDefaultBank(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	def, err := f.sys.DefaultProfile(uid)
	require.NoError(t, err)
	var changed []string
	f.sys.AddProfileListener(system.ProfileFunc(func(_ string, p *macro.Profile) { changed = append(changed, p.ID) }))

	require.NoError(t, f.sys.SetDefaultBank(def, 4))
	b, err := f.sys.DefaultBank(uid)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Number)
	assert.Equal(t, []string{def.ID}, changed)
}

func TestApplicationMatching(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	base, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)

	browser, err := f.sys.CreateProfile(uid, "Browser")
	require.NoError(t, err)
	browser.IncludeApplications = []string{"firefox|chromium"}
	browser.ExcludeApplications = []string{"chromium"}
	require.NoError(t, f.sys.SaveProfile(browser))

	rules, err := f.sys.CreateProfile(uid, "No rules")
	require.NoError(t, err)
	require.NoError(t, f.sys.SaveProfile(rules))

	active := func() string {
		p, err := f.sys.ActiveProfile(uid)
		require.NoError(t, err)
		return p.Name
	}

	f.sys.CheckActiveApp(window.Application{Name: "firefox"})
	assert.Equal(t, "Browser", active())

	f.sys.CheckActiveApp(window.Application{Name: "firefox"})
	assert.Equal(t, "Browser", active())

	f.sys.CheckActiveApp(window.Application{Name: "firefox-esr"})
	assert.Equal(t, base.Name, active(), "patterns match the whole name")

	f.sys.CheckActiveApp(window.Application{Name: "chromium"})
	assert.Equal(t, base.Name, active(), "exclusions win")

	require.NoError(t, f.sys.SetLocked(uid, true))
	f.sys.CheckActiveApp(window.Application{Name: "firefox"})
	assert.Equal(t, base.Name, active(), "locked devices keep their profile")
}

func TestActiveChangedRunsOnFastQueue(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	p, err := f.sys.CreateProfile(uid, "Term")
	require.NoError(t, err)
	p.IncludeApplications = []string{"kitty"}
	require.NoError(t, f.sys.SaveProfile(p))

	f.sys.ActiveChanged(window.Application{}, window.Application{Name: "kitty"})
	f.sys.Fast().Flush()
	active, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, "Term", active.Name)
}

func TestBaseProfileInheritance(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)

	base, err := f.sys.CreateProfile(uid, "Base")
	require.NoError(t, err)
	base.Bank(0).Add(macro.NewSimple(keys.NewSequence(keys.Up, keyA), "base a"))
	base.Bank(0).Add(macro.NewSimple(keys.NewSequence(keys.Up, keyC), "base c"))
	require.NoError(t, f.sys.SaveProfile(base))

	derived, err := f.sys.CreateProfile(uid, "Derived")
	require.NoError(t, err)
	derived.BaseProfile = base.ID
	derived.Bank(0).Add(macro.NewSimple(keys.NewSequence(keys.Up, keyA), "derived a"))
	derived.Bank(0).Add(macro.NewSimple(keys.NewSequence(keys.Up, keyB), "derived b"))
	require.NoError(t, f.sys.SaveProfile(derived))

	require.NoError(t, f.sys.SetActiveProfile(derived))
	b, err := f.sys.ActiveBank(uid)
	require.NoError(t, err)

	lookup := func(c keys.Code) string {
		m, ok := b.Macro(keys.NewSequence(keys.Up, c))
		if !ok {
			return ""
		}
		return m.Text
	}
	assert.Equal(t, "derived a", lookup(keyA), "derived bindings override")
	assert.Equal(t, "derived b", lookup(keyB))
	assert.Equal(t, "base c", lookup(keyC), "the base supplements")

	t.Run("cycles terminate", func(t *testing.T) {
		base.BaseProfile = derived.ID
		require.NoError(t, f.store.SaveProfile(base))
		require.NoError(t, f.sys.SaveProfile(derived))
		b, err := f.sys.ActiveBank(uid)
		require.NoError(t, err)
		m, ok := b.Macro(keys.NewSequence(keys.Up, keyC))
		require.True(t, ok)
		assert.Equal(t, "base c", m.Text)
	})
}

func TestNextFreeActivationSequence(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	p, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	p.Bank(0).Add(macro.NewNoop(keys.NewSequence(keys.Up, keyA)))

	seq, err := f.sys.NextFreeActivationSequence(uid)
	require.NoError(t, err)
	assert.Equal(t, keys.NewSequence(keys.Up, keyB), seq)
}

func TestHandleChange(t *testing.T) {
	f := newFixture(t)
	f.add(t, 0)
	p, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)

	// another process edits the active profile
	edited, err := f.store.LoadProfile(uid, p.ID)
	require.NoError(t, err)
	edited.Name = "Edited"
	edited.Bank(0).Add(macro.NewNoop(keys.NewSequence(keys.Up, keyA)))
	require.NoError(t, f.store.SaveProfile(edited))
	f.sys.HandleChange(storage.Change{Kind: storage.ProfileChanged, Device: uid, Profile: p.ID})

	active, err := f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, "Edited", active.Name)
	b, err := f.sys.ActiveBank(uid)
	require.NoError(t, err)
	assert.True(t, b.Contains(keys.NewSequence(keys.Up, keyA)))

	// and activates another one
	other := macro.NewProfile(uid, "Elsewhere")
	require.NoError(t, f.store.SaveProfile(other))
	require.NoError(t, f.store.SetActiveProfile(other))
	f.sys.HandleChange(storage.Change{Kind: storage.DeviceChanged, Device: uid})
	active, err = f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, "Elsewhere", active.Name)

	// then deletes it
	require.NoError(t, f.store.RemoveProfile(other))
	f.sys.HandleChange(storage.Change{Kind: storage.ProfileRemoved, Device: uid, Profile: other.ID})
	active, err = f.sys.ActiveProfile(uid)
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)

	f.sys.HandleChange(storage.Change{Kind: storage.DeviceChanged, Device: "unknown"})
}
