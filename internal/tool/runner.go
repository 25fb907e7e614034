// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tool runs the external command line tools of the Android SDK.
package tool

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner runs an external program and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// Error is returned if an external program could not be run or exited with a
// non zero exit code.
type Error struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

// Error implements the [error] interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)

	output := strings.TrimSpace(e.Output)
	if output != "" {
		msg += ": " + output
	}

	return msg
}

// Is implements the [errors.Is] interface.
func (*Error) Is(other error) bool {
	_, ok := other.(*Error)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExecRunner is a [Runner] that executes programs with [exec.CommandContext].
//
// Programs are run in the given directory. The working directory of the
// calling process is never changed.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run implements [Runner].
func (r *ExecRunner) Run(
	ctx context.Context,
	dir string,
	name string,
	args ...string,
) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	r.logger().Debug("Running tool",
		slog.String("command", cmd.String()),
		slog.String("dir", dir))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &Error{
			Name:   name,
			Args:   args,
			Output: string(out),
			Err:    err,
		}
	}

	return string(out), nil
}

func (r *ExecRunner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}

	return r.Logger
}
