// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package avd

import "strings"

// Profile is a device profile as listed by avdmanager.
type Profile struct {
	Name   string
	Device string
	Path   string
	Target string
	Skin   string
	Sdcard string

	// Error is set for broken profiles avdmanager could not load.
	Error string
}

const separatorPrefix = "---"

// ParseProfiles parses the output of "avdmanager list avd".
//
// Each profile starts with a "Name:" line and ends with a separator line or
// the end of the output. Keys are matched case-insensitively and unknown keys
// are ignored. Continuation lines without a key are dropped.
func ParseProfiles(out string) []Profile {
	profiles := []Profile{}

	var current *Profile

	flush := func() {
		if current != nil {
			profiles = append(profiles, *current)
			current = nil
		}
	}

	for line := range strings.Lines(out) {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, separatorPrefix) {
			flush()
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "name" {
			flush()

			current = &Profile{Name: value}

			continue
		}

		if current == nil {
			continue
		}

		switch key {
		case "device":
			current.Device = value
		case "path":
			current.Path = value
		case "target":
			current.Target = value
		case "skin":
			current.Skin = value
		case "sdcard":
			current.Sdcard = value
		case "error":
			current.Error = value
		}
	}

	flush()

	return profiles
}
