// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// HomeEnvVar names the environment variable the token file is looked up
	// in.
	HomeEnvVar = "HOME"

	// TokenFileName is the name of the token file in the home directory. It
	// is created by the emulator on first start.
	TokenFileName = ".emulator_console_auth_token"
)

// TokenPath returns the path of the authentication token file.
//
// It returns a [ConfigurationError] if the home directory is not set.
func TokenPath() (string, error) {
	home := os.Getenv(HomeEnvVar)
	if home == "" {
		return "", &ConfigurationError{Var: HomeEnvVar, Err: ErrHomeNotSet}
	}

	return filepath.Join(home, TokenFileName), nil
}

// ReadToken reads the authentication token. The file content is used as is.
//
// If the token file does not exist, ok is false and no error is returned.
func ReadToken() (string, bool, error) {
	path, err := TokenPath()
	if err != nil {
		return "", false, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("read token file: %w", err)
	}

	return string(content), true, nil
}
