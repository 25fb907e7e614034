// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

const (
	authRequiredMarker = "Authentication required"

	readChunkSize = 1024
)

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	s.logger.Debug("Connecting to console", slog.String("address", s.Address()))

	conn, err := s.dialer.DialContext(ctx, "tcp", s.Address())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	return conn, nil
}

// handshake consumes the banner and authenticates if the server asks for it.
func (s *Session) handshake(ctx context.Context, conn net.Conn) error {
	banner, err := s.receive(ctx, conn)
	if err != nil {
		return fmt.Errorf("read banner: %w", err)
	}

	if !strings.Contains(string(banner), authRequiredMarker) {
		return nil
	}

	token, err := s.authToken()
	if err != nil {
		return fmt.Errorf("auth token: %w", err)
	}

	s.logger.Debug("Authenticating console session", slog.Int("port", s.port))

	err = s.sendLine(ctx, conn, "auth "+token)
	if err != nil {
		return err
	}

	// The auth reply is not evaluated. A rejected token shows up as failure
	// reply of the following command.
	reply, err := s.receive(ctx, conn)
	if err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}

	if !reply.Successful() {
		s.logger.Debug("Console authentication rejected",
			slog.String("reply", reply.Diagnostic()))
	}

	return nil
}

// sendLine writes the given text terminated by a newline.
func (s *Session) sendLine(ctx context.Context, conn net.Conn, text string) error {
	_ = conn.SetWriteDeadline(s.deadline(ctx))

	err := ctx.Err()
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = io.WriteString(conn, text+"\n")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr //nolint:wrapcheck
		}

		return fmt.Errorf("write: %w", err)
	}

	return nil
}

// receive reads from the connection until the accumulated data contains a
// terminator.
//
// The complete reply must arrive within the reply timeout and must not exceed
// the maximum reply size.
func (s *Session) receive(ctx context.Context, conn net.Conn) (Reply, error) {
	// Set the deadline before checking the context. If the context is
	// cancelled in between, the interrupt overwrites this deadline.
	_ = conn.SetReadDeadline(s.deadline(ctx))

	err := ctx.Err()
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	var (
		data  []byte
		chunk = make([]byte, readChunkSize)
	)

	for {
		n, err := conn.Read(chunk)

		scanFrom := len(data) - maxTerminatorLen + 1
		data = append(data, chunk[:n]...)

		if containsTerminator(data, scanFrom) {
			return Reply(data), nil
		}

		if s.maxReplySize > 0 && len(data) > s.maxReplySize {
			return "", &ProtocolError{Partial: Reply(data), Err: ErrReplyTooLarge}
		}

		if err != nil {
			return "", s.readError(ctx, Reply(data), err)
		}
	}
}

func (*Session) readError(ctx context.Context, partial Reply, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr //nolint:wrapcheck
	}

	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		// The read deadline may fire right before the context's own timer.
		ctxDeadline, ok := ctx.Deadline()
		if ok && !time.Now().Before(ctxDeadline) {
			return context.DeadlineExceeded
		}

		return &ProtocolError{Partial: partial, Err: ErrReplyTimeout}
	case errors.Is(err, io.EOF):
		return &ProtocolError{Partial: partial, Err: io.ErrUnexpectedEOF}
	default:
		return fmt.Errorf("read: %w", err)
	}
}

// deadline returns the earlier of the context deadline and the reply timeout.
// The zero time means no deadline.
func (s *Session) deadline(ctx context.Context) time.Time {
	var deadline time.Time

	if s.replyTimeout > 0 {
		deadline = time.Now().Add(s.replyTimeout)
	}

	ctxDeadline, ok := ctx.Deadline()
	if ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}

	return deadline
}
