// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package emulator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aibor/avdctl/internal/config"
)

// Argument is a single emulator command line option with an optional value.
type Argument struct {
	// Name is the option name without the leading dash.
	Name string
	// Value follows the name on the command line. It is omitted if empty.
	Value string
	// Repeatable arguments may be given multiple times with distinct values.
	Repeatable bool
}

// String returns the argument as it appears on the command line.
func (a Argument) String() string {
	if a.Value == "" {
		return "-" + a.Name
	}

	return "-" + a.Name + " " + a.Value
}

// collides reports if both arguments must not be given together.
func (a Argument) collides(other Argument) bool {
	if a.Name != other.Name {
		return false
	}

	if a.Repeatable && other.Repeatable {
		return a.Value == other.Value
	}

	return true
}

func (a Argument) appendTo(dst []string) []string {
	dst = append(dst, "-"+a.Name)

	if a.Value != "" {
		dst = append(dst, a.Value)
	}

	return dst
}

var (
	// ArgNoSnapshotLoad boots cold instead of loading the quick boot snapshot.
	ArgNoSnapshotLoad = Argument{Name: "no-snapshot-load"}
	// ArgNoSnapshotSave skips saving the quick boot snapshot on exit.
	ArgNoSnapshotSave = Argument{Name: "no-snapshot-save"}
	// ArgNoWindow runs the emulator headless.
	ArgNoWindow = Argument{Name: "no-window"}
	// ArgNoAudio disables audio.
	ArgNoAudio = Argument{Name: "no-audio"}
)

// ArgAVD names the virtual device profile to boot.
func ArgAVD(name string) Argument {
	return Argument{Name: "avd", Value: name}
}

// ArgPort sets the console port. The adb port is the console port + 1.
func ArgPort(port int) Argument {
	return Argument{Name: "port", Value: strconv.Itoa(port)}
}

// ArgSnapshot boots from the named snapshot.
func ArgSnapshot(name string) Argument {
	return Argument{Name: "snapshot", Value: name}
}

// ArgMemory sets the guest memory in MB.
func ArgMemory(mb int) Argument {
	return Argument{Name: "memory", Value: strconv.Itoa(mb)}
}

// ArgGPU sets the GPU emulation mode.
func ArgGPU(mode string) Argument {
	return Argument{Name: "gpu", Value: mode}
}

// ArgProp sets a system property at boot.
func ArgProp(key, value string) Argument {
	return Argument{Name: "prop", Value: key + "=" + value, Repeatable: true}
}

// configArgs translates the optional emulator settings into arguments.
func configArgs(cfg config.Emulator) Arguments {
	var args Arguments

	if cfg.NoWindow {
		args.Add(ArgNoWindow)
	}

	if cfg.NoAudio {
		args.Add(ArgNoAudio)
	}

	if cfg.NoSnapshotSave {
		args.Add(ArgNoSnapshotSave)
	}

	if cfg.Snapshot != "" {
		args.Add(ArgSnapshot(cfg.Snapshot))
	}

	if cfg.Memory > 0 {
		args.Add(ArgMemory(cfg.Memory))
	}

	if cfg.GPU != "" {
		args.Add(ArgGPU(cfg.GPU))
	}

	for _, prop := range cfg.Props {
		key, value, _ := strings.Cut(prop, "=")
		args.Add(ArgProp(key, value))
	}

	return args
}

// Arguments is the ordered emulator command line.
type Arguments []Argument

// Add appends the given [Argument]s.
func (a *Arguments) Add(args ...Argument) {
	*a = append(*a, args...)
}

// Build returns the command line strings in order.
//
// It fails with [ErrCollidingArgs] if a non repeatable argument is given
// more than once or a repeatable one is given twice with the same value.
func (a Arguments) Build() ([]string, error) {
	s := make([]string, 0, 2*len(a))

	for idx, arg := range a {
		if slices.ContainsFunc(a[idx+1:], arg.collides) {
			return nil, fmt.Errorf("%w: -%s", ErrCollidingArgs, arg.Name)
		}

		s = arg.appendTo(s)
	}

	return s, nil
}
