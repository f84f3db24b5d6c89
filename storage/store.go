// Package storage persists profiles as JSON files, one directory per device:
//
//	<root>/<device>/active               id of the active profile
//	<root>/<device>/default              id of the default profile
//	<root>/<device>/lock                 present while profile switching is locked
//	<root>/<device>/profiles/<id>.json
//	<root>/<device>/profiles/<id>.activeBank
//	<root>/<device>/profiles/<id>.defaultBank
package storage

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Alia5/macrokey/macro"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrCorruptProfile  = errors.New("corrupt profile")
	// ErrDefaultProfile is returned when removing the default profile.
	ErrDefaultProfile = errors.New("cannot remove the default profile, make another profile the default first")
)

const (
	profileExt     = ".json"
	activeBankExt  = ".activeBank"
	defaultBankExt = ".defaultBank"
	tmpExt         = ".tmp"

	activeFile  = "active"
	defaultFile = "default"
	lockFile    = "lock"
	profilesDir = "profiles"
)

// Store is the profile persistence the macro system depends on.
type Store interface {
	LoadProfile(device, id string) (*macro.Profile, error)
	SaveProfile(p *macro.Profile) error
	RemoveProfile(p *macro.Profile) error
	Profiles(device string) ([]*macro.Profile, error)
	ProfileWithName(device, name string) (*macro.Profile, error)
	NumberOfProfiles(device string) (int, error)

	LoadActiveProfile(device string) (string, error)
	SetActiveProfile(p *macro.Profile) error
	LoadActiveBank(p *macro.Profile) (int, error)
	SetActiveBank(p *macro.Profile, bank int) error

	LoadDefaultProfile(device string) (string, error)
	SetDefaultProfile(p *macro.Profile) error
	LoadDefaultBank(p *macro.Profile) (int, error)
	SetDefaultBank(p *macro.Profile, bank int) error

	IsLocked(device string) (bool, error)
	SetLocked(device string, locked bool) error
}

// JSON is a Store backed by a directory tree.
type JSON struct {
	root   string
	logger *slog.Logger
}

var _ Store = (*JSON)(nil)

// NewJSON opens or creates a store rooted at root.
func NewJSON(root string, logger *slog.Logger) (*JSON, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &JSON{root: root, logger: logger.With("component", "storage")}, nil
}

// Root is the directory the store lives in.
func (s *JSON) Root() string { return s.root }

// DeviceDir is the directory holding the state of device.
func (s *JSON) DeviceDir(device string) string { return filepath.Join(s.root, device) }

func (s *JSON) profilesDir(device string) string {
	return filepath.Join(s.root, device, profilesDir)
}

func (s *JSON) profileFile(device, id string) string {
	return filepath.Join(s.profilesDir(device), id+profileExt)
}

func (s *JSON) ensureProfilesDir(device string) error {
	if device == "" {
		return errors.New("profile has no device")
	}
	return os.MkdirAll(s.profilesDir(device), 0o755)
}

func (s *JSON) LoadProfile(device, id string) (*macro.Profile, error) {
	return s.loadFile(device, s.profileFile(device, id))
}

func (s *JSON) loadFile(device, path string) (*macro.Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	p, err := UnmarshalProfile(device, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// SaveProfile writes p to a temporary file, checks it loads back and then
// renames it over the previous version.
func (s *JSON) SaveProfile(p *macro.Profile) error {
	if err := s.ensureProfilesDir(p.Device); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	data, err := MarshalProfile(p)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	dst := s.profileFile(p.Device, p.ID)
	tmp := dst + tmpExt
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if _, err := s.loadFile(p.Device, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save profile: verify: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save profile: %w", err)
	}
	s.logger.Debug("saved profile", "device", p.Device, "profile", p.ID, "name", p.Name)
	return nil
}

// RemoveProfile deletes p and its bank state. The default profile cannot be
// removed.
func (s *JSON) RemoveProfile(p *macro.Profile) error {
	def, err := s.readLine(filepath.Join(s.DeviceDir(p.Device), defaultFile))
	if err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	if def == p.ID {
		return ErrDefaultProfile
	}
	dir := s.profilesDir(p.Device)
	var errs []error
	for _, name := range []string{p.ID + profileExt, p.ID + activeBankExt, p.ID + defaultBankExt} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if act, _ := s.readLine(filepath.Join(s.DeviceDir(p.Device), activeFile)); act == p.ID {
		if err := os.Remove(filepath.Join(s.DeviceDir(p.Device), activeFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove profile: %w", err)
	}
	s.logger.Debug("removed profile", "device", p.Device, "profile", p.ID)
	return nil
}

func (s *JSON) profileFiles(device string) ([]string, error) {
	entries, err := os.ReadDir(s.profilesDir(device))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), profileExt) {
			out = append(out, filepath.Join(s.profilesDir(device), e.Name()))
		}
	}
	return out, nil
}

// Profiles loads every profile of device ordered by name. Unreadable
// profiles are logged and skipped.
func (s *JSON) Profiles(device string) ([]*macro.Profile, error) {
	files, err := s.profileFiles(device)
	if err != nil {
		return nil, err
	}
	out := make([]*macro.Profile, 0, len(files))
	for _, f := range files {
		p, err := s.loadFile(device, f)
		if err != nil {
			s.logger.Warn("skipping unreadable profile", "file", f, "error", err)
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *macro.Profile) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *JSON) ProfileWithName(device, name string) (*macro.Profile, error) {
	ps, err := s.Profiles(device)
	if err != nil {
		return nil, err
	}
	for _, p := range ps {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *JSON) NumberOfProfiles(device string) (int, error) {
	files, err := s.profileFiles(device)
	return len(files), err
}

// LoadActiveProfile returns the id of the active profile, or "" if none was
// recorded.
func (s *JSON) LoadActiveProfile(device string) (string, error) {
	return s.readLine(filepath.Join(s.DeviceDir(device), activeFile))
}

func (s *JSON) SetActiveProfile(p *macro.Profile) error {
	return s.writeLine(filepath.Join(s.DeviceDir(p.Device), activeFile), p.ID)
}

// LoadActiveBank returns the active bank of p, falling back to its default
// bank.
func (s *JSON) LoadActiveBank(p *macro.Profile) (int, error) {
	n, ok, err := s.readInt(filepath.Join(s.profilesDir(p.Device), p.ID+activeBankExt))
	if err != nil || ok {
		return n, err
	}
	return s.LoadDefaultBank(p)
}

func (s *JSON) SetActiveBank(p *macro.Profile, bank int) error {
	return s.writeLine(filepath.Join(s.profilesDir(p.Device), p.ID+activeBankExt), strconv.Itoa(bank))
}

// LoadDefaultProfile returns the id of the default profile. When none was
// recorded the first profile becomes the default. "" means the device has no
// profiles.
func (s *JSON) LoadDefaultProfile(device string) (string, error) {
	id, err := s.readLine(filepath.Join(s.DeviceDir(device), defaultFile))
	if err != nil || id != "" {
		return id, err
	}
	ps, err := s.Profiles(device)
	if err != nil || len(ps) == 0 {
		return "", err
	}
	if err := s.SetDefaultProfile(ps[0]); err != nil {
		return "", err
	}
	return ps[0].ID, nil
}

func (s *JSON) SetDefaultProfile(p *macro.Profile) error {
	return s.writeLine(filepath.Join(s.DeviceDir(p.Device), defaultFile), p.ID)
}

// LoadDefaultBank returns the default bank of p, 0 when unset.
func (s *JSON) LoadDefaultBank(p *macro.Profile) (int, error) {
	n, _, err := s.readInt(filepath.Join(s.profilesDir(p.Device), p.ID+defaultBankExt))
	return n, err
}

func (s *JSON) SetDefaultBank(p *macro.Profile, bank int) error {
	return s.writeLine(filepath.Join(s.profilesDir(p.Device), p.ID+defaultBankExt), strconv.Itoa(bank))
}

func (s *JSON) IsLocked(device string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.DeviceDir(device), lockFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, err
}

func (s *JSON) SetLocked(device string, locked bool) error {
	path := filepath.Join(s.DeviceDir(device), lockFile)
	if !locked {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("unlock: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(s.DeviceDir(device), 0o755); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	return f.Close()
}

// ResourcePath resolves an icon or background reference of p. Absolute
// references are returned as they are, relative ones resolve against the
// profile directory. "" means the resource does not exist.
func (s *JSON) ResourcePath(p *macro.Profile, name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	path := filepath.Join(s.profilesDir(p.Device), name)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (s *JSON) readLine(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(b), "\n")
	return strings.TrimSpace(line), nil
}

func (s *JSON) readInt(path string) (int, bool, error) {
	line, err := s.readLine(path)
	if err != nil || line == "" {
		return 0, false, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return n, true, nil
}

func (s *JSON) writeLine(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + tmpExt
	if err := os.WriteFile(tmp, []byte(value+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
