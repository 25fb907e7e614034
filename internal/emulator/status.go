// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aibor/avdctl/internal/adb"
	"github.com/aibor/avdctl/internal/console"
	"github.com/cenkalti/backoff/v4"
)

const (
	waitInitialInterval = 250 * time.Millisecond
	waitMaxInterval     = 5 * time.Second
)

// Status is the coarse state of an emulator instance.
type Status int

const (
	// StatusOff means no emulator process started by the [Emulator] is
	// alive.
	StatusOff Status = iota
	// StatusLimbo means the process is alive but the console or adb do not
	// report a booted device (yet).
	StatusLimbo
	// StatusOn means the console answers pings and adb reports a device.
	StatusOn
)

// String implements [fmt.Stringer].
func (s Status) String() string {
	switch s {
	case StatusOff:
		return "off"
	case StatusLimbo:
		return "limbo"
	case StatusOn:
		return "on"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Status returns the current [Status] of the emulator.
//
// It is [StatusOff] if the process started by this [Emulator] is not alive.
// Otherwise failing console or adb queries result in [StatusLimbo]. Only
// errors of the context and of listing the adb devices are returned.
func (e *Emulator) Status(ctx context.Context) (Status, error) {
	if !e.Running() {
		return StatusOff, nil
	}

	status, err := e.Probe(ctx)
	if status == StatusOff {
		status = StatusLimbo
	}

	return status, err
}

// Probe derives the status from console and adb queries only. In contrast to
// [Emulator.Status] it can be used for instances started elsewhere.
//
// It is [StatusOff] if no console reports the name of the [Emulator] or the
// console on the configured port cannot be connected.
func (e *Emulator) Probe(ctx context.Context) (Status, error) {
	port, err := e.ResolvePort(ctx)
	if err != nil {
		if errors.Is(err, ErrPortNotFound) {
			return StatusOff, nil
		}

		return StatusOff, err
	}

	err = e.pingOnce(ctx)
	if err != nil {
		e.logger.Debug("Console ping failed",
			slog.Int("port", port),
			slog.Any("error", err))

		if errors.Is(err, console.ErrUnreachable) {
			return StatusOff, ctx.Err()
		}

		return StatusLimbo, ctx.Err()
	}

	state, err := e.bridge.State(ctx, port)
	if err != nil {
		e.logger.Debug("Getting adb state failed",
			slog.Int("port", port),
			slog.Any("error", err))

		return StatusLimbo, ctx.Err()
	}

	if state != adb.StateDevice {
		return StatusLimbo, nil
	}

	return StatusOn, nil
}

func (e *Emulator) pingOnce(ctx context.Context) error {
	session, err := e.Console(ctx)
	if err != nil {
		return err
	}

	ok, err := session.Ping(ctx)
	if err != nil {
		return err
	}

	if !ok {
		return ErrPingFailed
	}

	return nil
}

// WaitForConsole blocks until the console of the emulator answers a ping.
//
// Attempts are retried with exponential backoff until the wait timeout is
// reached or the context is done. It fails immediately if the emulator
// process exits.
func (e *Emulator) WaitForConsole(ctx context.Context) error {
	if e.waitTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.waitTimeout)
		defer cancel()
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = waitInitialInterval
	backOff.MaxInterval = waitMaxInterval
	backOff.MaxElapsedTime = 0

	attempt := 0

	err := backoff.Retry(func() error {
		attempt++

		if !e.Running() {
			return backoff.Permanent(ErrNotStarted)
		}

		err := e.pingOnce(ctx)
		if err != nil {
			e.logger.Debug("Console not ready",
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		}

		return err
	}, backoff.WithContext(backOff, ctx))
	if err != nil {
		return fmt.Errorf("wait for console: %w", err)
	}

	return nil
}
