// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package consoletest provides an in-process emulator console server for
// tests.
package consoletest

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
)

const (
	// Banner is the greeting of a console that does not require
	// authentication.
	Banner = "Android Console: type 'help' for a list of commands\r\nOK\r\n"

	// AuthBanner is the greeting of a console that requires authentication.
	AuthBanner = "Android Console: Authentication required\r\n" +
		"Android Console: type 'auth <auth_token>' to authenticate\r\n" +
		"Android Console: you can find your <auth_token> in \r\n" +
		"'/home/user/.emulator_console_auth_token'\r\n" +
		"OK\r\n"

	// OK is the plain success reply.
	OK = "OK\r\n"
)

// Handler returns the reply for a received command line.
type Handler func(line string) string

// Static returns a [Handler] that replies with fixed replies per command and
// with a failure for unknown commands.
func Static(replies map[string]string) Handler {
	return func(line string) string {
		reply, exists := replies[line]
		if !exists {
			return "KO: unknown command, try 'help'\r\n"
		}

		return reply
	}
}

// Server is a fake emulator console listening on a loopback port.
type Server struct {
	banner   string
	handler  Handler
	listener net.Listener
	group    errgroup.Group

	mu          sync.Mutex
	chunkSize   int
	lines       []string
	conns       map[net.Conn]struct{}
	connections int
	closed      bool
}

// NewServer starts a new [Server] with the given banner and handler. It is
// closed on test cleanup.
func NewServer(tb testing.TB, banner string, handler Handler) *Server {
	tb.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("listen: %v", err)
	}

	server := &Server{
		banner:   banner,
		handler:  handler,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}

	server.group.Go(server.serve)

	tb.Cleanup(func() {
		err := server.Close()
		if err != nil {
			tb.Errorf("close console server: %v", err)
		}
	})

	return server
}

// Port returns the port the server listens on.
func (s *Server) Port() int {
	addr, _ := s.listener.Addr().(*net.TCPAddr)
	return addr.Port
}

// SetChunkSize makes the server split each write into chunks of the given
// size. Zero disables splitting.
func (s *Server) SetChunkSize(size int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunkSize = size
}

// Received returns all lines received so far over all connections.
func (s *Server) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, len(s.lines))
	copy(lines, s.lines)

	return lines
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connections
}

// Close stops the server and closes all open connections.
func (s *Server) Close() error {
	_ = s.listener.Close()

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return s.group.Wait() //nolint:wrapcheck
}

func (s *Server) serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return err //nolint:wrapcheck
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()

			return nil
		}

		s.conns[conn] = struct{}{}
		s.connections++
		s.mu.Unlock()

		s.group.Go(func() error {
			defer s.forget(conn)
			return s.handle(conn)
		})
	}
}

func (s *Server) forget(conn net.Conn) {
	_ = conn.Close()

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) handle(conn net.Conn) error {
	err := s.write(conn, s.banner)
	if err != nil {
		return nil
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		s.mu.Lock()
		s.lines = append(s.lines, line)
		s.mu.Unlock()

		reply := ""
		if s.handler != nil {
			reply = s.handler(line)
		}

		err := s.write(conn, reply)
		if err != nil {
			return nil
		}
	}

	// Read errors are expected once either side closes the connection.
	return nil
}

func (s *Server) write(w io.Writer, data string) error {
	s.mu.Lock()
	chunkSize := s.chunkSize
	s.mu.Unlock()

	if chunkSize <= 0 {
		_, err := io.WriteString(w, data)
		return err //nolint:wrapcheck
	}

	for len(data) > 0 {
		n := min(chunkSize, len(data))

		_, err := io.WriteString(w, data[:n])
		if err != nil {
			return err //nolint:wrapcheck
		}

		data = data[n:]
	}

	return nil
}
