// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
)

const (
	cmdPing = "ping"
	cmdName = "avd name"
)

// classify decides whether the reply reports success. Failure replies are
// returned as [CommandError].
func classify(line string, reply Reply) (Reply, error) {
	if !reply.Successful() {
		return reply, &CommandError{Command: line, Reply: reply}
	}

	return reply, nil
}

func isCommandError(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr)
}

// runCommand sends the line and returns the classified reply.
func (s *Session) runCommand(ctx context.Context, line string) (Reply, error) {
	return s.withConnection(ctx, func(ctx context.Context, conn net.Conn) (Reply, error) {
		s.logger.Debug("Sending console command",
			slog.Int("port", s.port),
			slog.String("command", line))

		err := s.sendLine(ctx, conn, line)
		if err != nil {
			return "", err
		}

		reply, err := s.receive(ctx, conn)
		if err != nil {
			return "", err
		}

		s.logger.Debug("Received console reply",
			slog.Int("port", s.port),
			slog.Int("bytes", len(reply)))

		return classify(line, reply)
	})
}

// runBoolCommand is like runCommand but reports success as boolean.
func (s *Session) runBoolCommand(ctx context.Context, line string) (bool, error) {
	_, err := s.runCommand(ctx, line)
	if err != nil {
		return false, err
	}

	return true, nil
}

// Ping checks if the console accepts commands.
//
// A running emulator that is still booting may accept connections but not
// answer commands yet.
func (s *Session) Ping(ctx context.Context) (bool, error) {
	return s.runBoolCommand(ctx, cmdPing)
}

// Name returns the raw reply of the "avd name" command. Use [ParseName] to
// extract the name.
func (s *Session) Name(ctx context.Context) (Reply, error) {
	return s.runCommand(ctx, cmdName)
}

// AVDName returns the name of the virtual device running behind the console.
func (s *Session) AVDName(ctx context.Context) (string, error) {
	reply, err := s.Name(ctx)
	if err != nil {
		return "", err
	}

	return ParseName(reply)
}

// ParseName extracts the device name from an "avd name" reply. The name is
// the line right before the status line.
func ParseName(reply Reply) (string, error) {
	lines := reply.Lines()
	if len(lines) < 2 { //nolint:mnd
		return "", fmt.Errorf("%w: no name line in %q", ErrMalformedReply, reply)
	}

	return lines[len(lines)-2], nil
}
