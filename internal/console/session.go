// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package console

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
)

// Host is the address the emulator console listens on. The emulator never
// binds it to anything else.
const Host = "127.0.0.1"

const (
	// DefaultDialTimeout is the default time allowed for establishing the
	// connection.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReplyTimeout is the default time allowed for receiving a
	// complete reply.
	DefaultReplyTimeout = 10 * time.Second

	// DefaultMaxReplySize is the default maximum size of a single reply in
	// bytes.
	DefaultMaxReplySize = 1 << 20
)

// TokenFunc returns the authentication token. If ok is false, no token is
// present and an empty token is sent.
type TokenFunc func() (token string, ok bool, err error)

// Option configures a [Session].
type Option func(s *Session)

// WithDialTimeout sets the timeout for connecting to the console. Zero
// disables the timeout.
func WithDialTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.dialer.Timeout = timeout
	}
}

// WithReplyTimeout sets the time allowed for receiving a complete reply. Zero
// disables the timeout and the session waits until the context is done.
func WithReplyTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.replyTimeout = timeout
	}
}

// WithMaxReplySize sets the maximum size of a reply in bytes. Zero or less
// disables the limit.
func WithMaxReplySize(size int) Option {
	return func(s *Session) {
		s.maxReplySize = size
	}
}

// WithTokenFunc replaces the default token source [ReadToken].
func WithTokenFunc(fn TokenFunc) Option {
	return func(s *Session) {
		s.tokenFn = fn
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is a connection to the console of a single emulator instance.
//
// The connection is established on the first command. All methods are safe
// for concurrent use. Commands are serialized, as the protocol has no way to
// match replies to interleaved requests.
type Session struct {
	port         int
	dialer       net.Dialer
	replyTimeout time.Duration
	maxReplySize int
	tokenFn      TokenFunc
	logger       *slog.Logger

	mu          sync.Mutex
	conn        net.Conn
	token       string
	tokenLoaded bool
}

// New creates a new [Session] for the console listening on the given port.
//
// No connection is made until the first command is issued.
func New(port int, opts ...Option) *Session {
	session := &Session{
		port:         port,
		dialer:       net.Dialer{Timeout: DefaultDialTimeout},
		replyTimeout: DefaultReplyTimeout,
		maxReplySize: DefaultMaxReplySize,
		tokenFn:      ReadToken,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(session)
	}

	return session
}

// Port returns the console port the session is bound to.
func (s *Session) Port() int {
	return s.port
}

// Address returns the network address of the console.
func (s *Session) Address() string {
	return net.JoinHostPort(Host, strconv.Itoa(s.port))
}

// Connected returns true if the session currently holds a connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}

// Close closes the connection if there is one. The session stays usable; the
// next command connects again.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.disconnect()
}

// Snapshots returns the snapshot operations for this session.
func (s *Session) Snapshots() *Snapshots {
	return &Snapshots{session: s}
}

// withConnection runs op on an established and authenticated connection.
//
// If op or the connection setup fails for any other reason than a failure
// reply, the connection is dropped so the next call starts from a clean state.
func (s *Session) withConnection(
	ctx context.Context,
	op func(ctx context.Context, conn net.Conn) (Reply, error),
) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := ctx.Err()
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	established := false

	if s.conn == nil {
		conn, err := s.dial(ctx)
		if err != nil {
			return "", err
		}

		s.conn = conn
		established = true
	}

	conn := s.conn

	// Unblock pending reads and writes once the context is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	reply, err := s.runOnConn(ctx, conn, established, op)

	// If the interrupt has fired already, the connection carries a deadline in
	// the past and can not be used anymore.
	if !stop() {
		_ = s.disconnect()
	}

	return reply, err
}

func (s *Session) runOnConn(
	ctx context.Context,
	conn net.Conn,
	established bool,
	op func(ctx context.Context, conn net.Conn) (Reply, error),
) (Reply, error) {
	if established {
		err := s.handshake(ctx, conn)
		if err != nil {
			_ = s.disconnect()
			return "", err
		}
	}

	reply, err := op(ctx, conn)
	if err != nil && !isCommandError(err) {
		_ = s.disconnect()
	}

	return reply, err
}

func (s *Session) disconnect() error {
	if s.conn == nil {
		return nil
	}

	s.logger.Debug("Closing console connection", slog.Int("port", s.port))

	err := s.conn.Close()
	s.conn = nil

	return err //nolint:wrapcheck
}

// authToken returns the token, reading it on first use only.
func (s *Session) authToken() (string, error) {
	if s.tokenLoaded {
		return s.token, nil
	}

	token, ok, err := s.tokenFn()
	if err != nil {
		return "", err
	}

	if !ok {
		s.logger.Debug("No console auth token found")
	}

	s.token = token
	s.tokenLoaded = true

	return token, nil
}
