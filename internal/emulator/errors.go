// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package emulator

import "errors"

var (
	// ErrNotStarted is returned if an operation requires a running emulator
	// process started by this [Emulator].
	ErrNotStarted = errors.New("emulator not started")

	// ErrAlreadyStarted is returned if the emulator process is running
	// already.
	ErrAlreadyStarted = errors.New("emulator already started")

	// ErrPortNotFound is returned if no running console reports the name of
	// the [Emulator].
	ErrPortNotFound = errors.New("console port not found")

	// ErrCollidingArgs is returned if a unique argument is given more than
	// once.
	ErrCollidingArgs = errors.New("colliding args")

	// ErrPingFailed is returned if the console does not answer a ping
	// successfully.
	ErrPingFailed = errors.New("ping failed")
)
