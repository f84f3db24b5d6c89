package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/Alia5/macrokey/input"
	"github.com/Alia5/macrokey/internal/configpaths"
	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/storage"
	"github.com/Alia5/macrokey/system"
)

// ProfileCommand groups the profile management subcommands. They work on
// the storage directly; a running daemon picks the changes up.
type ProfileCommand struct {
	List     ProfileList     `cmd:"" help:"List the profiles of a device"`
	Create   ProfileCreate   `cmd:"" help:"Create a profile with a default bank"`
	Remove   ProfileRemove   `cmd:"" help:"Remove a profile"`
	Export   ProfileExport   `cmd:"" help:"Export a profile as zip, json, yaml or toml"`
	Activate ProfileActivate `cmd:"" help:"Make a profile the active one"`
	Default  ProfileDefault  `cmd:"" help:"Make a profile the default one"`
	Lock     ProfileLock     `cmd:"" help:"Stop profile switching on a device"`
	Unlock   ProfileUnlock   `cmd:"" help:"Allow profile switching on a device"`
}

// ProfileTarget selects the storage and the device the subcommands act on.
type ProfileTarget struct {
	Device  string `short:"d" required:"" help:"Device UID, node path or name" env:"MACROKEY_DEVICE"`
	Storage string `help:"Profile storage directory" type:"path" env:"MACROKEY_STORAGE"`
}

func (s ProfileTarget) open(logger *slog.Logger) (*storage.JSON, string, error) {
	root := s.Storage
	if root == "" {
		var err error
		if root, err = configpaths.DefaultStorageDir(); err != nil {
			return nil, "", fmt.Errorf("failed to resolve storage dir: %w", err)
		}
	}
	store, err := storage.NewJSON(root, logger)
	if err != nil {
		return nil, "", err
	}
	return store, resolveUID(store, s.Device, logger), nil
}

// resolveUID returns id when it already names a device dir of the store and
// otherwise looks the device up to read its UID.
func resolveUID(store *storage.JSON, id string, logger *slog.Logger) string {
	if fi, err := os.Stat(store.DeviceDir(id)); err == nil && fi.IsDir() {
		return id
	}
	path, err := input.Find(id)
	if err != nil {
		logger.Debug("using device id as given", "device", id, "error", err)
		return id
	}
	dev, err := input.Open(path)
	if err != nil {
		logger.Debug("using device id as given", "device", id, "error", err)
		return id
	}
	defer dev.Close()
	return dev.UID()
}

// findProfile looks ref up as an id first, then as a name.
func findProfile(store storage.Store, uid, ref string) (*macro.Profile, error) {
	p, err := store.LoadProfile(uid, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrProfileNotFound) {
		return nil, err
	}
	return store.ProfileWithName(uid, ref)
}

type ProfileList struct {
	ProfileTarget `embed:""`
}

func (c *ProfileList) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	return listProfiles(os.Stdout, store, uid)
}

func listProfiles(w io.Writer, store storage.Store, uid string) error {
	profiles, err := store.Profiles(uid)
	if err != nil {
		return err
	}
	active, _ := store.LoadActiveProfile(uid)
	def, _ := store.LoadDefaultProfile(uid)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBANKS\tFLAGS")
	for _, p := range profiles {
		flags := ""
		if p.ID == active {
			flags += "active "
		}
		if p.ID == def {
			flags += "default "
		}
		if p.ActivatedByApplication() {
			flags += "app "
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, len(p.Banks()), flags)
	}
	return tw.Flush()
}

type ProfileCreate struct {
	ProfileTarget `embed:""`
	Name          string `arg:"" help:"Profile name"`
	Banks         int    `help:"Maximum number of banks" default:"10"`
}

func (c *ProfileCreate) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	p, err := createProfile(store, uid, c.Name, c.Banks)
	if err != nil {
		return err
	}
	logger.Info("profile created", "id", p.ID, "name", p.Name, "device", uid)
	return nil
}

// createProfile saves a new profile with a default bank. The first profile
// of a device also becomes its active and default profile.
func createProfile(store storage.Store, uid, name string, banks int) (*macro.Profile, error) {
	if _, err := store.ProfileWithName(uid, name); err == nil {
		return nil, fmt.Errorf("profile %q already exists", name)
	}
	n, err := store.NumberOfProfiles(uid)
	if err != nil {
		return nil, err
	}
	p := macro.NewProfile(uid, name)
	if _, err := p.AddBank(system.DefaultName, banks); err != nil {
		return nil, err
	}
	if err := store.SaveProfile(p); err != nil {
		return nil, err
	}
	if n == 0 {
		if err := store.SetActiveProfile(p); err != nil {
			return nil, err
		}
		if err := store.SetDefaultProfile(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

type ProfileRemove struct {
	ProfileTarget `embed:""`
	Profile       string `arg:"" help:"Profile id or name"`
}

func (c *ProfileRemove) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	p, err := findProfile(store, uid, c.Profile)
	if err != nil {
		return err
	}
	if err := store.RemoveProfile(p); err != nil {
		return err
	}
	logger.Info("profile removed", "id", p.ID, "name", p.Name)
	return nil
}

type ProfileExport struct {
	ProfileTarget `embed:""`
	Profile       string `arg:"" help:"Profile id or name"`
	Output        string `short:"o" help:"Destination file (defaults to <name>.<format>)" type:"path"`
	Format        string `help:"Export format (zip, json, yaml or toml); inferred from --output when empty"`
}

func (c *ProfileExport) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	p, err := findProfile(store, uid, c.Profile)
	if err != nil {
		return err
	}
	format := storage.FormatZip
	switch {
	case c.Format != "":
		format, err = storage.ParseFormat(c.Format)
	case c.Output != "":
		format, err = storage.ParseFormat(c.Output)
	}
	if err != nil {
		return err
	}
	dest := c.Output
	if dest == "" {
		dest = p.Name + "." + string(format)
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := store.Export(p, f, format); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("profile exported", "name", p.Name, "file", filepath.Clean(dest), "format", format)
	return nil
}

type ProfileActivate struct {
	ProfileTarget `embed:""`
	Profile       string `arg:"" help:"Profile id or name"`
	Bank          int    `help:"Bank to make active" default:"-1"`
}

func (c *ProfileActivate) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	return activateProfile(store, uid, c.Profile, c.Bank)
}

func activateProfile(store storage.Store, uid, ref string, bank int) error {
	locked, err := store.IsLocked(uid)
	if err != nil {
		return err
	}
	if locked {
		return system.ErrProfileLocked
	}
	p, err := findProfile(store, uid, ref)
	if err != nil {
		return err
	}
	if bank >= 0 {
		if _, ok := p.LookupBank(bank); !ok {
			return fmt.Errorf("profile %q has no bank %d", p.Name, bank)
		}
		if err := store.SetActiveBank(p, bank); err != nil {
			return err
		}
	}
	return store.SetActiveProfile(p)
}

type ProfileDefault struct {
	ProfileTarget `embed:""`
	Profile       string `arg:"" help:"Profile id or name"`
	Bank          int    `help:"Bank to make the default" default:"-1"`
}

func (c *ProfileDefault) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	p, err := findProfile(store, uid, c.Profile)
	if err != nil {
		return err
	}
	if c.Bank >= 0 {
		if _, ok := p.LookupBank(c.Bank); !ok {
			return fmt.Errorf("profile %q has no bank %d", p.Name, c.Bank)
		}
		if err := store.SetDefaultBank(p, c.Bank); err != nil {
			return err
		}
	}
	return store.SetDefaultProfile(p)
}

type ProfileLock struct {
	ProfileTarget `embed:""`
}

func (c *ProfileLock) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	return store.SetLocked(uid, true)
}

type ProfileUnlock struct {
	ProfileTarget `embed:""`
}

func (c *ProfileUnlock) Run(logger *slog.Logger) error {
	store, uid, err := c.open(logger)
	if err != nil {
		return err
	}
	return store.SetLocked(uid, false)
}
