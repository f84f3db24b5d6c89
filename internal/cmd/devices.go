package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Alia5/macrokey/input"
)

// Devices lists the input devices macrokey can grab.
type Devices struct {
	Details bool `help:"Open every device to show its UID and joystick support"`
}

func (c *Devices) Run(logger *slog.Logger) error {
	infos, err := input.List()
	if err != nil {
		return err
	}
	rows := make([]deviceRow, 0, len(infos))
	for _, in := range infos {
		row := deviceRow{Path: in.Path, Name: in.Name}
		if c.Details {
			dev, err := input.Open(in.Path)
			if err != nil {
				logger.Debug("skipping device details", "path", in.Path, "error", err)
			} else {
				row.UID = dev.UID()
				row.Joystick = dev.HasJoystick()
				row.Keys = len(dev.SupportedKeys())
				_ = dev.Close()
			}
		}
		rows = append(rows, row)
	}
	return writeDevices(os.Stdout, rows, term.IsTerminal(int(os.Stdout.Fd())), c.Details)
}

type deviceRow struct {
	Path     string
	Name     string
	UID      string
	Joystick bool
	Keys     int
}

// writeDevices prints an aligned table for terminals and tab separated
// lines otherwise.
func writeDevices(w io.Writer, rows []deviceRow, tty, details bool) error {
	if !tty {
		for _, r := range rows {
			var err error
			if details {
				_, err = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\n", r.Path, r.Name, r.UID, r.Joystick, r.Keys)
			} else {
				_, err = fmt.Fprintf(w, "%s\t%s\n", r.Path, r.Name)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if details {
		fmt.Fprintln(tw, "PATH\tNAME\tUID\tJOYSTICK\tKEYS")
	} else {
		fmt.Fprintln(tw, "PATH\tNAME")
	}
	for _, r := range rows {
		if details {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\n", r.Path, r.Name, r.UID, r.Joystick, r.Keys)
		} else {
			fmt.Fprintf(tw, "%s\t%s\n", r.Path, r.Name)
		}
	}
	return tw.Flush()
}
