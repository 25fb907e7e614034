// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package avd manages Android Virtual Device profiles with the avdmanager
// tool of the Android SDK.
package avd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aibor/avdctl/internal/tool"
)

// ErrMoveFailed is returned if avdmanager reports an error on renaming.
var ErrMoveFailed = errors.New("move avd failed")

// Manager runs avdmanager commands.
type Manager struct {
	path   string
	dir    string
	runner tool.Runner
	logger *slog.Logger
}

// NewManager creates a new [Manager] for the avdmanager executable at path.
// The tool is run in dir.
//
// If runner is nil, a [tool.ExecRunner] is used. If logger is nil,
// [slog.Default] is used.
func NewManager(path, dir string, runner tool.Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if runner == nil {
		runner = &tool.ExecRunner{Logger: logger}
	}

	return &Manager{
		path:   path,
		dir:    dir,
		runner: runner,
		logger: logger,
	}
}

// List returns all device profiles known to avdmanager.
func (m *Manager) List(ctx context.Context) ([]Profile, error) {
	out, err := m.runner.Run(ctx, m.dir, m.path, "list", "avd")
	if err != nil {
		return nil, fmt.Errorf("list avd: %w", err)
	}

	profiles := ParseProfiles(out)

	m.logger.Debug("Listed profiles", slog.Int("count", len(profiles)))

	return profiles, nil
}

// Rename renames the device profile oldName to newName.
func (m *Manager) Rename(ctx context.Context, oldName, newName string) error {
	out, err := m.runner.Run(ctx, m.dir, m.path,
		"move", "avd", "-n", oldName, "-r", newName)

	// Failures are reported in the output, not always by the exit code.
	if strings.Contains(out, errorMarker) {
		return fmt.Errorf("%w: %s", ErrMoveFailed, failureMessage(out))
	}

	if err != nil {
		return fmt.Errorf("move avd: %w", err)
	}

	m.logger.Debug("Renamed profile",
		slog.String("old", oldName),
		slog.String("new", newName))

	return nil
}

const errorMarker = "Error:"

func failureMessage(out string) string {
	for line := range strings.Lines(out) {
		_, msg, found := strings.Cut(line, errorMarker)
		if found {
			return strings.TrimSpace(msg)
		}
	}

	return strings.TrimSpace(out)
}
