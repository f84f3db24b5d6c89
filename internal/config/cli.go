// Package config holds the command line interface of macrokey.
package config

import "github.com/Alia5/macrokey/internal/cmd"

// Log configures the application logger and the raw event log.
type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"MACROKEY_LOG_LEVEL"`
	File    string `help:"Write logs to this file instead of the console" env:"MACROKEY_LOG_FILE"`
	RawFile string `help:"Write raw input and output events to this file" env:"MACROKEY_LOG_RAW_FILE"`
}

// CLI is the root command.
type CLI struct {
	Config string `help:"Path to a configuration file (json, yaml or toml)" type:"path" env:"MACROKEY_CONFIG"`
	Log    Log    `embed:"" prefix:"log."`

	Daemon    cmd.Daemon         `cmd:"" help:"Grab input devices and run their macros"`
	Devices   cmd.Devices        `cmd:"" help:"List input devices"`
	Profile   cmd.ProfileCommand `cmd:"" help:"Manage stored profiles"`
	ConfigCmd cmd.ConfigCommand  `cmd:"" name:"config" help:"Configuration helpers"`
	Install   cmd.Install        `cmd:"" help:"Install the daemon as a systemd service"`
	Uninstall cmd.Uninstall      `cmd:"" help:"Remove the systemd service"`
}
