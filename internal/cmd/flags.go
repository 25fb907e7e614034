// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"flag"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/aibor/avdctl/internal/config"
	"github.com/spf13/viper"
)

const (
	name = "avdctl"

	usageMessage = `Usage of 'avdctl':
    avdctl [flags...] command [args...]

Commands:
    list                        list virtual device profiles
    rename OLD NEW              rename a virtual device profile
    start NAME                  start an emulator and wait for its console
    status NAME                 print emulator status: off, limbo or on
    ping PORT                   ping the console on PORT
    name PORT                   print the device name of the console on PORT
    snapshot list PORT          list the snapshots of the emulator on PORT
    snapshot save PORT NAME     save a snapshot
    snapshot load PORT NAME     load a snapshot
    snapshot del PORT NAME      delete a snapshot

All avdctl flags can also be provided via environment variable AVDCTL_ARGS:
	AVDCTL_ARGS="-debug" avdctl status Pixel_2

All avdctl flags can also be provided via file ./.avdctl-args, with one
argument per line.

Flags -port and -cold override the config keys emulator.port and
emulator.cold_boot.

Flags:
`
)

// Set on build.
var version = "dev"

// configKeys maps flags to the config keys they override.
var configKeys = map[string]string{
	"port": config.KeyEmulatorPort,
	"cold": config.KeyEmulatorColdBoot,
}

type flags struct {
	flagSet *flag.FlagSet

	version   bool
	debug     bool
	port      int
	cold      bool
	noWait    bool
	configDir string

	command string
	args    []string
}

func newFlagSet(output io.Writer) *flags {
	flags := &flags{}

	flags.initFlagset(output)

	return flags
}

func (f *flags) initFlagset(output io.Writer) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageMessage)
		fs.PrintDefaults()
	}

	fs.IntVar(
		&f.port,
		"port",
		f.port,
		"console port of the emulator. If not set, it is discovered with adb",
	)

	fs.BoolVar(
		&f.cold,
		"cold",
		f.cold,
		"cold boot on start, do not load the quick boot snapshot",
	)

	fs.BoolVar(
		&f.noWait,
		"nowait",
		f.noWait,
		"do not wait for the console on start",
	)

	fs.StringVar(
		&f.configDir,
		"config",
		f.configDir,
		"directory to search for avdctl.yaml instead of the default locations",
	)

	fs.BoolVar(
		&f.debug,
		"debug",
		f.debug,
		"enable debug output",
	)

	fs.BoolVar(
		&f.version,
		"version",
		f.version,
		"show version and exit",
	)

	f.flagSet = fs
}

// fail fails like flag does. It prints the error first and then usage.
func (f *flags) fail(msg string, err error) error {
	err = &ParseArgsError{msg: msg, err: err}
	fmt.Fprintln(f.flagSet.Output(), err.Error())

	f.flagSet.Usage()

	return err
}

func (f *flags) printVersionInformation() {
	fmt.Fprintf(f.flagSet.Output(), "%s: %s\n", name, version)

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	fmt.Fprintln(f.flagSet.Output())
	fmt.Fprintln(f.flagSet.Output(), buildInfo.String())
}

func (f *flags) parseArgs(args []string) error {
	// Parses arguments up to the first one that is not prefixed with a "-" or
	// is "--".
	err := f.flagSet.Parse(args)
	if err != nil {
		return &ParseArgsError{msg: "flag parse", err: err}
	}

	// With version flag, just print the version and exit. Using [flag.ErrHelp]
	// the main binary is supposed to return with a non error exit code.
	if f.version {
		f.printVersionInformation()
		return &ParseArgsError{msg: "version requested", err: flag.ErrHelp}
	}

	if f.port < 0 || f.port > config.PortMax {
		return f.fail("invalid port", fmt.Errorf("%w: %d", config.ErrPortOutOfRange, f.port))
	}

	positionalArgs := f.flagSet.Args()

	if len(positionalArgs) < 1 {
		return f.fail("no command given", nil)
	}

	f.command = positionalArgs[0]
	f.args = positionalArgs[1:]

	return nil
}

// bindConfig sets the config keys of all flags given on the command line.
// Flags not given leave file and environment values in place.
func (f *flags) bindConfig(v *viper.Viper) {
	f.flagSet.Visit(func(fl *flag.Flag) {
		key, exists := configKeys[fl.Name]
		if !exists {
			return
		}

		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			return
		}

		v.Set(key, getter.Get())
	})
}

func parseArgs(args []string, output io.Writer) (*flags, error) {
	flags := newFlagSet(output)

	err := flags.parseArgs(args)
	if err != nil {
		return nil, err
	}

	return flags, nil
}
