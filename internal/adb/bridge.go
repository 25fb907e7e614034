// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package adb queries the Android Debug Bridge for running emulator
// instances.
package adb

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aibor/avdctl/internal/tool"
	"golang.org/x/sync/errgroup"
)

// StateDevice is the state of a fully booted device.
const StateDevice = "device"

const serialPrefix = "emulator-"

var emulatorSerialRegexp = regexp.MustCompile(serialPrefix + `(\d+)`)

// Serial returns the adb serial of the emulator with the given console port.
func Serial(port int) string {
	return serialPrefix + strconv.Itoa(port)
}

// Bridge runs adb commands.
type Bridge struct {
	path   string
	dir    string
	runner tool.Runner
	logger *slog.Logger
}

// NewBridge creates a new [Bridge] for the adb executable at path. The tool
// is run in dir.
//
// If runner is nil, a [tool.ExecRunner] is used. If logger is nil,
// [slog.Default] is used.
func NewBridge(path, dir string, runner tool.Runner, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	if runner == nil {
		runner = &tool.ExecRunner{Logger: logger}
	}

	return &Bridge{
		path:   path,
		dir:    dir,
		runner: runner,
		logger: logger,
	}
}

// Ports returns the console ports of all emulators listed by "adb devices"
// in output order.
func (b *Bridge) Ports(ctx context.Context) ([]int, error) {
	out, err := b.runner.Run(ctx, b.dir, b.path, "devices")
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}

	return ParsePorts(out), nil
}

// State returns the adb state of the emulator with the given console port,
// like "device" or "offline".
func (b *Bridge) State(ctx context.Context, port int) (string, error) {
	out, err := b.runner.Run(ctx, b.dir, b.path, "-s", Serial(port), "get-state")
	if err != nil {
		return "", fmt.Errorf("get-state %s: %w", Serial(port), err)
	}

	state := strings.TrimRight(out, "\r\n")

	b.logger.Debug("Got adb state",
		slog.Int("port", port),
		slog.String("state", state))

	return state, nil
}

// States returns the states of all given ports. The queries run
// concurrently. The first error cancels the remaining queries.
func (b *Bridge) States(ctx context.Context, ports []int) (map[int]string, error) {
	var (
		mu     sync.Mutex
		states = make(map[int]string, len(ports))
	)

	group, ctx := errgroup.WithContext(ctx)

	for _, port := range ports {
		group.Go(func() error {
			state, err := b.State(ctx, port)
			if err != nil {
				return err
			}

			mu.Lock()
			states[port] = state
			mu.Unlock()

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return states, nil
}

// ParsePorts extracts the console ports of all emulator serials in the output
// of "adb devices". Duplicates are dropped.
func ParsePorts(out string) []int {
	ports := []int{}

	for _, match := range emulatorSerialRegexp.FindAllStringSubmatch(out, -1) {
		port, err := strconv.Atoi(match[1])
		if err != nil || slices.Contains(ports, port) {
			continue
		}

		ports = append(ports, port)
	}

	return ports
}
