// Package system ties devices, profiles and actions together. It owns the
// dispatch queues, keeps one Keyboard per registered device and tracks the
// active and default profile and bank of each.
package system

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/macrokey/engine"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/storage"
	"github.com/Alia5/macrokey/window"
)

var (
	ErrDeviceNotRegistered = errors.New("device not registered")
	ErrDeviceRegistered    = errors.New("device already registered")
	ErrProfileLocked       = errors.New("profile switching is locked on this device")
)

const (
	// DefaultBanks is the bank count of devices that do not state one.
	DefaultBanks = 10
	// DefaultName names the bootstrap profile and its first bank.
	DefaultName = "Default"
)

// Device describes a physical device registered with the system.
type Device struct {
	UID  string
	Name string
	// Banks bounds the bank switching actions.
	Banks         int
	SupportedKeys []keys.Code
	// Bindings are device level action bindings, used when the active bank
	// does not bind an action itself.
	Bindings []macro.ActionBinding
}

// Config wires a System.
type Config struct {
	Store     storage.Store
	Output    engine.Emitter
	Desktop   engine.DesktopIO
	Notifier  Notifier
	HoldDelay time.Duration
	Logger    *slog.Logger
}

// System is the macro system.
type System struct {
	store     storage.Store
	out       engine.Emitter
	desktop   engine.DesktopIO
	notifier  Notifier
	holdDelay time.Duration
	logger    *slog.Logger

	fast    *engine.Queue
	slow    *engine.Queue
	actions *Actions

	mu      sync.RWMutex
	devices map[string]*deviceState

	bankListeners    listeners[ActiveBankListener]
	profileListeners listeners[ActiveProfileListener]
	changeListeners  listeners[ProfileListener]
	systemListeners  listeners[SystemListener]

	recMu     sync.Mutex
	recording *RecordingSession
}

type deviceState struct {
	dev      Device
	keyboard *engine.Keyboard
	// profiles is the active profile stack, the active one first.
	profiles       []*macro.Profile
	bank           *macro.Bank
	defaultProfile *macro.Profile
	defaultBank    int
	matches        []appMatch
}

func (st *deviceState) active() *macro.Profile { return st.profiles[0] }

// New creates a System with its dispatch queues running.
func New(cfg Config) *System {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	logger := cfg.Logger.With("component", "system")
	s := &System{
		store:     cfg.Store,
		out:       cfg.Output,
		desktop:   cfg.Desktop,
		notifier:  cfg.Notifier,
		holdDelay: cfg.HoldDelay,
		logger:    logger,
		fast:      engine.NewQueue("fast", cfg.Logger),
		slow:      engine.NewQueue("slow", cfg.Logger),
		actions:   NewActions(),
		devices:   map[string]*deviceState{},
	}
	s.registerBankActions()
	return s
}

// Actions is the action registry.
func (s *System) Actions() *Actions { return s.actions }

// Fast is the dispatch queue. Forwarders post events onto it.
func (s *System) Fast() *engine.Queue { return s.fast }

// Close unregisters every device and stops the queues.
func (s *System) Close() {
	s.mu.Lock()
	states := s.devices
	s.devices = map[string]*deviceState{}
	s.mu.Unlock()
	for _, st := range states {
		st.keyboard.Close()
	}
	s.fast.Close()
	s.slow.Close()
}

// AddDevice registers dev, restoring its active and default profile and
// bank. A device without profiles gets a "Default" profile with a
// "Default" bank.
func (s *System) AddDevice(dev Device) (*engine.Keyboard, error) {
	if dev.Banks <= 0 {
		dev.Banks = DefaultBanks
	}
	s.mu.Lock()
	if _, ok := s.devices[dev.UID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceRegistered, dev.UID)
	}
	st, created, err := s.bootstrap(dev)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("add device %s: %w", dev.UID, err)
	}
	st.keyboard = engine.NewKeyboard(engine.KeyboardConfig{
		Device:    dev.UID,
		HoldDelay: s.holdDelay,
		Env:       &deviceEnv{s: s, uid: dev.UID},
		Output:    s.out,
		Desktop:   s.desktop,
		Fast:      s.fast,
		Slow:      s.slow,
		Logger:    s.logger,
	})
	st.keyboard.SetBindings(dev.Bindings)
	st.keyboard.AddActionListener(s.actions)
	s.devices[dev.UID] = st
	s.mu.Unlock()

	s.logger.Info("device added", "device", dev.UID, "name", dev.Name,
		"profile", st.active().Name, "bank", st.bank.Number)
	if created {
		s.fireSystemChanged()
	}
	return st.keyboard, nil
}

// bootstrap must be called with mu held.
func (s *System) bootstrap(dev Device) (*deviceState, bool, error) {
	created := false
	p, err := s.loadOptional(dev.UID, s.store.LoadActiveProfile)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		if p, err = s.loadOptional(dev.UID, s.store.LoadDefaultProfile); err != nil {
			return nil, false, err
		}
	}
	if p == nil {
		p = macro.NewProfile(dev.UID, DefaultName)
		if _, err := p.AddBank(DefaultName, dev.Banks); err != nil {
			return nil, false, err
		}
		if err := s.store.SaveProfile(p); err != nil {
			return nil, false, err
		}
		if err := s.store.SetActiveProfile(p); err != nil {
			return nil, false, err
		}
		created = true
	}

	st := &deviceState{dev: dev, profiles: []*macro.Profile{p}}
	n, err := s.store.LoadActiveBank(p)
	if err != nil {
		return nil, false, err
	}
	s.selectBank(st, p, n)

	defID, err := s.store.LoadDefaultProfile(dev.UID)
	if err != nil {
		return nil, false, err
	}
	switch defID {
	case p.ID:
		st.defaultProfile = p
	case "":
	default:
		def, err := s.store.LoadProfile(dev.UID, defID)
		if err == nil {
			st.defaultProfile = def
		} else if !errors.Is(err, storage.ErrProfileNotFound) {
			return nil, false, err
		}
	}
	if st.defaultProfile == nil {
		if err := s.store.SetDefaultProfile(p); err != nil {
			return nil, false, err
		}
		st.defaultProfile = p
	}
	if st.defaultBank, err = s.store.LoadDefaultBank(st.defaultProfile); err != nil {
		return nil, false, err
	}
	s.rebuildMatches(st)
	return st, created, nil
}

// loadOptional loads the profile whose id load returns, nil when there is
// none or it no longer exists.
func (s *System) loadOptional(uid string, load func(string) (string, error)) (*macro.Profile, error) {
	id, err := load(uid)
	if err != nil || id == "" {
		return nil, err
	}
	p, err := s.store.LoadProfile(uid, id)
	if errors.Is(err, storage.ErrProfileNotFound) {
		s.logger.Warn("recorded profile is missing", "device", uid, "profile", id)
		return nil, nil
	}
	return p, err
}

// RemoveDevice unregisters uid and stops its keyboard.
func (s *System) RemoveDevice(uid string) error {
	s.mu.Lock()
	st, ok := s.devices[uid]
	delete(s.devices, uid)
	s.mu.Unlock()
	if !ok {
		return ErrDeviceNotRegistered
	}
	st.keyboard.Close()
	s.logger.Info("device removed", "device", uid)
	return nil
}

// Devices lists the registered devices.
func (s *System) Devices() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, 0, len(s.devices))
	for _, st := range s.devices {
		out = append(out, st.dev)
	}
	slices.SortFunc(out, func(a, b Device) int { return cmp.Compare(a.UID, b.UID) })
	return out
}

func (s *System) state(uid string) (*deviceState, error) {
	st, ok := s.devices[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotRegistered, uid)
	}
	return st, nil
}

// read runs fn on the state of uid under the read lock.
func (s *System) read(uid string, fn func(st *deviceState)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, err := s.state(uid)
	if err != nil {
		return err
	}
	fn(st)
	return nil
}

func (s *System) Keyboard(uid string) (k *engine.Keyboard, err error) {
	err = s.read(uid, func(st *deviceState) { k = st.keyboard })
	return
}

func (s *System) ActiveProfile(uid string) (p *macro.Profile, err error) {
	err = s.read(uid, func(st *deviceState) { p = st.active() })
	return
}

func (s *System) ActiveBank(uid string) (b *macro.Bank, err error) {
	err = s.read(uid, func(st *deviceState) { b = st.bank })
	return
}

func (s *System) DefaultProfile(uid string) (p *macro.Profile, err error) {
	err = s.read(uid, func(st *deviceState) { p = st.defaultProfile })
	return
}

func (s *System) DefaultBank(uid string) (b *macro.Bank, err error) {
	err = s.read(uid, func(st *deviceState) { b = st.defaultProfile.Bank(st.defaultBank) })
	return
}

// selectBank makes bank n of p current, linking p to its base profiles.
// Must be called with mu held.
func (s *System) selectBank(st *deviceState, p *macro.Profile, n int) {
	b := p.Bank(n)
	s.link(p)
	st.bank = b
}

// link connects p to its chain of base profiles. Cycles end the chain.
func (s *System) link(p *macro.Profile) {
	chain := []*macro.Profile{p}
	seen := map[string]bool{p.ID: true}
	for cur := p; cur.BaseProfile != "" && !seen[cur.BaseProfile]; {
		base, err := s.store.LoadProfile(cur.Device, cur.BaseProfile)
		if err != nil {
			s.logger.Warn("cannot load base profile", "profile", cur.Name, "base", cur.BaseProfile, "error", err)
			break
		}
		seen[base.ID] = true
		chain = append(chain, base)
		cur = base
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if i == len(chain)-1 {
			chain[i].Link(nil)
			continue
		}
		chain[i].Link(chain[i+1])
	}
}

// SetActiveProfile makes p the active profile of its device, restoring its
// last active bank.
func (s *System) SetActiveProfile(p *macro.Profile) error {
	locked, err := s.store.IsLocked(p.Device)
	if err != nil {
		return err
	}
	if locked {
		return ErrProfileLocked
	}
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if st.active().ID == p.ID {
		s.mu.Unlock()
		return nil
	}
	if err := s.store.SetActiveProfile(p); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set active profile: %w", err)
	}
	n, err := s.store.LoadActiveBank(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	st.profiles = []*macro.Profile{p}
	s.selectBank(st, p, n)
	s.mu.Unlock()

	s.logger.Info("active profile changed", "device", p.Device, "profile", p.Name, "bank", n)
	s.fireActiveProfile(p.Device, p)
	return nil
}

// SetActiveBank switches the device of p to bank n of p. A profile other
// than the active one is activated first.
func (s *System) SetActiveBank(p *macro.Profile, n int) error {
	active, err := s.ActiveProfile(p.Device)
	if err != nil {
		return err
	}
	if active.ID != p.ID {
		if err := s.SetActiveProfile(p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	cur := st.active()
	if st.bank != nil && st.bank.Number == n {
		s.mu.Unlock()
		return nil
	}
	if err := s.store.SetActiveBank(cur, n); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("set active bank: %w", err)
	}
	s.selectBank(st, cur, n)
	b := st.bank
	s.mu.Unlock()

	s.logger.Info("active bank changed", "device", p.Device, "profile", cur.Name, "bank", n)
	s.bankListeners.each(func(l ActiveBankListener) { l.ActiveBankChanged(p.Device, b) })
	notify(s.notifier, s.logger, cur.Name, b.DisplayName())
	return nil
}

// SetDefaultProfile records p as the default of its device.
func (s *System) SetDefaultProfile(p *macro.Profile) error {
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err == nil {
		err = s.store.SetDefaultProfile(p)
	}
	if err == nil {
		st.defaultProfile = p
		st.defaultBank, err = s.store.LoadDefaultBank(p)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.fireProfileChanged(p.Device, p)
	return nil
}

// SetDefaultBank records bank n as the default of p.
func (s *System) SetDefaultBank(p *macro.Profile, n int) error {
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err == nil {
		err = s.store.SetDefaultBank(p, n)
	}
	if err == nil && st.defaultProfile.ID == p.ID {
		st.defaultBank = n
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.fireProfileChanged(p.Device, p)
	return nil
}

// CreateProfile creates and saves a profile with a "Default" bank.
func (s *System) CreateProfile(uid, name string) (*macro.Profile, error) {
	s.mu.RLock()
	st, err := s.state(uid)
	banks := DefaultBanks
	if err == nil {
		banks = st.dev.Banks
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	p := macro.NewProfile(uid, name)
	if _, err := p.AddBank(DefaultName, banks); err != nil {
		return nil, err
	}
	if err := s.store.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	s.refreshMatches(uid)
	s.fireSystemChanged()
	return p, nil
}

// ProfileWithName returns the profile called name, creating it when
// missing.
func (s *System) ProfileWithName(uid, name string) (*macro.Profile, error) {
	p, err := s.store.ProfileWithName(uid, name)
	if errors.Is(err, storage.ErrProfileNotFound) {
		return s.CreateProfile(uid, name)
	}
	return p, err
}

func (s *System) Profiles(uid string) ([]*macro.Profile, error) { return s.store.Profiles(uid) }

func (s *System) NumberOfProfiles(uid string) (int, error) { return s.store.NumberOfProfiles(uid) }

// SaveProfile persists p and reindexes it if active.
func (s *System) SaveProfile(p *macro.Profile) error {
	if err := s.store.SaveProfile(p); err != nil {
		return err
	}
	s.mu.Lock()
	if st, err := s.state(p.Device); err == nil && st.active() == p && st.bank != nil {
		s.selectBank(st, p, st.bank.Number)
	}
	s.mu.Unlock()
	s.refreshMatches(p.Device)
	s.fireProfileChanged(p.Device, p)
	return nil
}

// RemoveProfile deletes p. A device using it falls back to its default
// profile.
func (s *System) RemoveProfile(p *macro.Profile) error {
	if err := s.store.RemoveProfile(p); err != nil {
		return err
	}
	s.dropProfile(p.Device, p.ID)
	s.refreshMatches(p.Device)
	s.fireSystemChanged()
	return nil
}

// dropProfile removes id from the active stack of uid.
func (s *System) dropProfile(uid, id string) {
	s.mu.Lock()
	st, err := s.state(uid)
	if err != nil {
		s.mu.Unlock()
		return
	}
	wasActive := st.active().ID == id
	st.profiles = slices.DeleteFunc(st.profiles, func(p *macro.Profile) bool { return p.ID == id })
	if len(st.profiles) == 0 {
		st.profiles = []*macro.Profile{st.defaultProfile}
		if err := s.store.SetActiveProfile(st.defaultProfile); err != nil {
			s.logger.Error("cannot record active profile", "device", uid, "error", err)
		}
	}
	var p *macro.Profile
	if wasActive {
		p = st.active()
		n, err := s.store.LoadActiveBank(p)
		if err != nil {
			s.logger.Warn("cannot load active bank", "profile", p.Name, "error", err)
		}
		s.selectBank(st, p, n)
	}
	s.mu.Unlock()
	if p != nil {
		s.fireActiveProfile(uid, p)
	}
}

// AddBank adds a named bank to p at the next free number.
func (s *System) AddBank(p *macro.Profile, name string) (*macro.Bank, error) {
	banks := DefaultBanks
	_ = s.read(p.Device, func(st *deviceState) { banks = st.dev.Banks })
	b, err := p.AddBank(name, banks)
	if err != nil {
		return nil, err
	}
	return b, s.SaveProfile(p)
}

// RemoveBank deletes bank n of p.
func (s *System) RemoveBank(p *macro.Profile, n int) error {
	if !p.RemoveBank(n) {
		return nil
	}
	return s.SaveProfile(p)
}

func (s *System) IsLocked(uid string) (bool, error) { return s.store.IsLocked(uid) }

// SetLocked stops or resumes profile switching on uid.
func (s *System) SetLocked(uid string, locked bool) error { return s.store.SetLocked(uid, locked) }

// NextFreeActivationSequence finds an unbound sequence in the active bank
// of uid over the keys the device supports.
func (s *System) NextFreeActivationSequence(uid string) (keys.Sequence, error) {
	var (
		b         *macro.Bank
		supported []keys.Code
	)
	if err := s.read(uid, func(st *deviceState) { b, supported = st.bank, st.dev.SupportedKeys }); err != nil {
		return keys.Sequence{}, err
	}
	return b.NextFreeActivationSequence(supported)
}

// ActiveChanged re-evaluates application matching when focus moves.
func (s *System) ActiveChanged(_, app window.Application) {
	s.fast.Post(func() { s.CheckActiveApp(app) })
}

var _ window.Listener = (*System)(nil)

// CheckActiveApp pushes the first profile matching app onto the active
// stack of each device, or pops back to the previous profile when nothing
// matches.
func (s *System) CheckActiveApp(app window.Application) {
	s.mu.RLock()
	uids := make([]string, 0, len(s.devices))
	for uid := range s.devices {
		uids = append(uids, uid)
	}
	s.mu.RUnlock()
	slices.Sort(uids)

	for _, uid := range uids {
		s.logger.Debug("checking profiles for application", "device", uid, "application", app.Name)
		var id string
		err := s.read(uid, func(st *deviceState) {
			for _, m := range st.matches {
				if m.matches(app) {
					id = m.id
					return
				}
			}
		})
		if err != nil {
			continue
		}
		if id != "" {
			if err := s.pushProfile(uid, id); err != nil {
				s.logger.Warn("cannot switch profile for application", "device", uid, "application", app.Name, "error", err)
			}
			continue
		}
		s.popProfile(uid)
	}
}

// pushProfile keeps at most one previous profile under the pushed one.
func (s *System) pushProfile(uid, id string) error {
	locked, err := s.store.IsLocked(uid)
	if err != nil {
		return err
	}
	if locked {
		return ErrProfileLocked
	}
	s.mu.RLock()
	st, err := s.state(uid)
	same := err == nil && st.active().ID == id
	s.mu.RUnlock()
	if err != nil || same {
		return err
	}
	p, err := s.store.LoadProfile(uid, id)
	if err != nil {
		return err
	}
	n, err := s.store.LoadActiveBank(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if st, err = s.state(uid); err != nil {
		s.mu.Unlock()
		return err
	}
	st.profiles = append([]*macro.Profile{p}, st.profiles[len(st.profiles)-1])
	s.selectBank(st, p, n)
	s.mu.Unlock()

	s.logger.Info("pushed profile", "device", uid, "profile", p.Name)
	s.fireActiveProfile(uid, p)
	return nil
}

func (s *System) popProfile(uid string) {
	s.mu.Lock()
	st, err := s.state(uid)
	if err != nil || len(st.profiles) < 2 {
		s.mu.Unlock()
		return
	}
	st.profiles = st.profiles[1:]
	p := st.active()
	n, err := s.store.LoadActiveBank(p)
	if err != nil {
		s.logger.Warn("cannot load active bank", "profile", p.Name, "error", err)
	}
	s.selectBank(st, p, n)
	s.mu.Unlock()

	s.logger.Info("returning to profile", "device", uid, "profile", p.Name)
	s.fireActiveProfile(uid, p)
}

func (s *System) refreshMatches(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, err := s.state(uid); err == nil {
		s.rebuildMatches(st)
	}
}

// rebuildMatches must be called with mu held.
func (s *System) rebuildMatches(st *deviceState) {
	ps, err := s.store.Profiles(st.dev.UID)
	if err != nil {
		s.logger.Warn("cannot list profiles", "device", st.dev.UID, "error", err)
		return
	}
	st.matches = st.matches[:0]
	for _, p := range ps {
		if p.ActivatedByApplication() {
			st.matches = append(st.matches, newAppMatch(p, s.logger))
		}
	}
}

// HandleChange applies a change another process made to the store.
func (s *System) HandleChange(c storage.Change) {
	s.mu.RLock()
	st, err := s.state(c.Device)
	var stack []string
	if err == nil {
		for _, p := range st.profiles {
			stack = append(stack, p.ID)
		}
	}
	s.mu.RUnlock()
	if err != nil {
		return
	}

	switch c.Kind {
	case storage.ProfileRemoved:
		if slices.Contains(stack, c.Profile) {
			s.dropProfile(c.Device, c.Profile)
		}
		s.refreshMatches(c.Device)
		s.fireSystemChanged()
	case storage.ProfileChanged:
		s.refreshMatches(c.Device)
		if !slices.Contains(stack, c.Profile) {
			return
		}
		p, err := s.store.LoadProfile(c.Device, c.Profile)
		if err != nil {
			s.logger.Warn("cannot reload profile", "device", c.Device, "profile", c.Profile, "error", err)
			return
		}
		s.replaceProfile(p)
		s.fireProfileChanged(c.Device, p)
	case storage.DeviceChanged:
		id, err := s.store.LoadActiveProfile(c.Device)
		if err != nil || id == "" || id == stack[len(stack)-1] {
			return
		}
		p, err := s.store.LoadProfile(c.Device, id)
		if err != nil {
			s.logger.Warn("cannot load newly active profile", "device", c.Device, "profile", id, "error", err)
			return
		}
		s.replaceStack(p)
	}
}

// replaceProfile swaps a reloaded profile into the active stack.
func (s *System) replaceProfile(p *macro.Profile) {
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err != nil {
		s.mu.Unlock()
		return
	}
	for i, q := range st.profiles {
		if q.ID == p.ID {
			st.profiles[i] = p
		}
	}
	if st.defaultProfile.ID == p.ID {
		st.defaultProfile = p
	}
	if st.active() == p {
		n, err := s.store.LoadActiveBank(p)
		if err != nil {
			n = st.bank.Number
		}
		s.selectBank(st, p, n)
	}
	s.mu.Unlock()
}

// replaceStack activates p without recording it, as it already is.
func (s *System) replaceStack(p *macro.Profile) {
	n, err := s.store.LoadActiveBank(p)
	if err != nil {
		s.logger.Warn("cannot load active bank", "profile", p.Name, "error", err)
	}
	s.mu.Lock()
	st, err := s.state(p.Device)
	if err != nil {
		s.mu.Unlock()
		return
	}
	st.profiles = []*macro.Profile{p}
	s.selectBank(st, p, n)
	s.mu.Unlock()
	s.fireActiveProfile(p.Device, p)
}

// AddActiveBankListener registers l. The returned func removes it.
func (s *System) AddActiveBankListener(l ActiveBankListener) func() { return s.bankListeners.add(l) }

func (s *System) AddActiveProfileListener(l ActiveProfileListener) func() {
	return s.profileListeners.add(l)
}

func (s *System) AddProfileListener(l ProfileListener) func() { return s.changeListeners.add(l) }

func (s *System) AddSystemListener(l SystemListener) func() { return s.systemListeners.add(l) }

func (s *System) fireActiveProfile(uid string, p *macro.Profile) {
	s.profileListeners.each(func(l ActiveProfileListener) { l.ActiveProfileChanged(uid, p) })
	notify(s.notifier, s.logger, "Profile", p.Name)
}

func (s *System) fireProfileChanged(uid string, p *macro.Profile) {
	s.changeListeners.each(func(l ProfileListener) { l.ProfileChanged(uid, p) })
}

func (s *System) fireSystemChanged() {
	s.systemListeners.each(func(l SystemListener) { l.SystemChanged() })
}

// deviceEnv serves the active bank and delays of one device to its
// keyboard.
type deviceEnv struct {
	s   *System
	uid string
}

func (e *deviceEnv) ActiveBank() (b *macro.Bank) {
	_ = e.s.read(e.uid, func(st *deviceState) { b = st.bank })
	return
}

func (e *deviceEnv) Delays() (d macro.Delays) {
	_ = e.s.read(e.uid, func(st *deviceState) { d = st.active().Delays() })
	return
}
