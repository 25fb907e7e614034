// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"errors"
	"fmt"
)

var (
	// ErrHomeNotSet is returned if the home directory environment variable
	// is not set and so the authentication token can not be located.
	ErrHomeNotSet = errors.New("home directory not set")

	// ErrUnreachable is returned if no connection to the console could be
	// established.
	ErrUnreachable = errors.New("console unreachable")

	// ErrReplyTimeout is returned if a complete reply was not received within
	// the configured reply timeout.
	ErrReplyTimeout = errors.New("reply timed out")

	// ErrReplyTooLarge is returned if a reply exceeds the configured maximum
	// reply size without being terminated.
	ErrReplyTooLarge = errors.New("reply too large")

	// ErrMalformedReply is returned if a successful reply does not have the
	// layout expected for the command.
	ErrMalformedReply = errors.New("malformed reply")
)

// ConfigurationError is returned if the environment lacks a variable required
// for locating console resources.
type ConfigurationError struct {
	Var string
	Err error
}

// Error implements the [error] interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Var, e.Err)
}

// Is implements the [errors.Is] interface.
func (*ConfigurationError) Is(other error) bool {
	_, ok := other.(*ConfigurationError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// CommandError is returned if the console replied with a failure status line.
//
// It carries the complete raw reply for diagnostics.
type CommandError struct {
	Command string
	Reply   Reply
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("console command %q failed: %s", e.Command, e.Reply.Diagnostic())
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// ProtocolError is returned if a reply could not be received completely.
//
// Partial holds whatever was received before the failure.
type ProtocolError struct {
	Partial Reply
	Err     error
}

// Error implements the [error] interface.
func (e *ProtocolError) Error() string {
	return "console protocol: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*ProtocolError) Is(other error) bool {
	_, ok := other.(*ProtocolError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
