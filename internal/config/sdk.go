// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import "path/filepath"

// SDK locates the tools in an Android SDK installation.
type SDK struct {
	Home string
}

// ToolsDir returns the directory of the emulator and the SDK tools.
func (s SDK) ToolsDir() string {
	return filepath.Join(s.Home, "tools")
}

// EmulatorPath returns the path of the emulator executable.
func (s SDK) EmulatorPath() string {
	return filepath.Join(s.ToolsDir(), "emulator")
}

// AVDManagerPath returns the path of the avdmanager executable.
func (s SDK) AVDManagerPath() string {
	return filepath.Join(s.ToolsDir(), "bin", "avdmanager")
}

// PlatformToolsDir returns the directory of the platform tools.
func (s SDK) PlatformToolsDir() string {
	return filepath.Join(s.Home, "platform-tools")
}

// ADBPath returns the path of the adb executable.
func (s SDK) ADBPath() string {
	return filepath.Join(s.PlatformToolsDir(), "adb")
}
