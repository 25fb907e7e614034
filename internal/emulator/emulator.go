// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package emulator manages the lifecycle of Android emulator processes.
//
// An [Emulator] starts and stops a single emulator process for a named
// virtual device profile. It finds the console port of the running instance
// with the help of adb and derives the instance status from console and adb
// queries.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/aibor/avdctl/internal/adb"
	"github.com/aibor/avdctl/internal/config"
	"github.com/aibor/avdctl/internal/console"
)

const (
	DefaultStopTimeout = 10 * time.Second
	DefaultWaitTimeout = 2 * time.Minute
)

// Bridge lists running emulators and queries their adb state.
type Bridge interface {
	Ports(ctx context.Context) ([]int, error)
	State(ctx context.Context, port int) (string, error)
}

// StopMode defines how [Emulator.Stop] terminates the process.
type StopMode int

const (
	// StopKill kills the process immediately.
	StopKill StopMode = iota
	// StopGraceful interrupts the process so the emulator can save its
	// state. The process is killed if it does not exit in time.
	StopGraceful
)

// String implements [fmt.Stringer].
func (m StopMode) String() string {
	switch m {
	case StopKill:
		return "kill"
	case StopGraceful:
		return "graceful"
	default:
		return fmt.Sprintf("StopMode(%d)", int(m))
	}
}

// Option configures an [Emulator].
type Option func(*Emulator)

// WithPort sets the console port. If not set, the port is discovered by
// [Emulator.ResolvePort].
func WithPort(port int) Option {
	return func(e *Emulator) {
		e.port = port
	}
}

// WithColdBoot disables loading the quick boot snapshot on start.
func WithColdBoot(cold bool) Option {
	return func(e *Emulator) {
		e.coldBoot = cold
	}
}

// WithConfig applies the emulator settings of the configuration. Options
// given after it override single settings.
func WithConfig(cfg config.Emulator) Option {
	return func(e *Emulator) {
		e.port = cfg.Port
		e.coldBoot = cfg.ColdBoot
		e.stopTimeout = cfg.StopTimeout
		WithExtraArgs(configArgs(cfg)...)(e)
	}
}

// WithExtraArgs adds arguments to the emulator command line.
func WithExtraArgs(args ...Argument) Option {
	return func(e *Emulator) {
		e.extraArgs.Add(args...)
	}
}

// WithBridge sets the [Bridge] used for port discovery and status queries.
func WithBridge(bridge Bridge) Option {
	return func(e *Emulator) {
		e.bridge = bridge
	}
}

// WithConsoleOptions sets options for all console sessions.
func WithConsoleOptions(opts ...console.Option) Option {
	return func(e *Emulator) {
		e.consoleOpts = append(e.consoleOpts, opts...)
	}
}

// WithOutput sets the writer the emulator output is written to. By default
// the output is discarded.
func WithOutput(w io.Writer) Option {
	return func(e *Emulator) {
		e.output = w
	}
}

// WithStopTimeout sets how long [StopGraceful] waits before killing.
func WithStopTimeout(timeout time.Duration) Option {
	return func(e *Emulator) {
		e.stopTimeout = timeout
	}
}

// WithWaitTimeout sets how long [Emulator.WaitForConsole] waits at most.
func WithWaitTimeout(timeout time.Duration) Option {
	return func(e *Emulator) {
		e.waitTimeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// Emulator controls the emulator process of a single virtual device.
//
// It is safe for concurrent use.
type Emulator struct {
	name      string
	coldBoot  bool
	extraArgs Arguments

	path        string
	dir         string
	bridge      Bridge
	consoleOpts []console.Option
	output      io.Writer
	stopTimeout time.Duration
	waitTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	port    int
	process *process
	session *console.Session
}

// New creates a new [Emulator] for the virtual device with the given name
// using the tools of the given SDK.
func New(sdk config.SDK, name string, opts ...Option) *Emulator {
	e := &Emulator{
		name:        name,
		path:        sdk.EmulatorPath(),
		dir:         sdk.ToolsDir(),
		stopTimeout: DefaultStopTimeout,
		waitTimeout: DefaultWaitTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.bridge == nil {
		e.bridge = adb.NewBridge(sdk.ADBPath(), sdk.PlatformToolsDir(), nil, e.logger)
	}

	return e
}

// Name returns the name of the virtual device.
func (e *Emulator) Name() string {
	return e.name
}

// ColdBoot returns if the quick boot snapshot is skipped on start.
func (e *Emulator) ColdBoot() bool {
	return e.coldBoot
}

// Port returns the console port. It is 0 if neither configured nor resolved
// yet.
func (e *Emulator) Port() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.port
}

// Args returns the emulator command line arguments.
func (e *Emulator) Args() Arguments {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.args()
}

func (e *Emulator) args() Arguments {
	args := Arguments{ArgAVD(e.name)}

	if e.port != 0 {
		args.Add(ArgPort(e.port))
	}

	if e.coldBoot {
		args.Add(ArgNoSnapshotLoad)
	}

	args.Add(e.extraArgs...)

	return args
}

// Start starts the emulator process. The process is not bound to the given
// context and keeps running until it is stopped or exits.
func (e *Emulator) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running() {
		return ErrAlreadyStarted
	}

	err := ctx.Err()
	if err != nil {
		return err
	}

	args, err := e.args().Build()
	if err != nil {
		return err
	}

	//nolint:gosec,noctx
	cmd := exec.Command(e.path, args...)
	cmd.Dir = e.dir

	if e.output != nil {
		cmd.Stdout = e.output
		cmd.Stderr = e.output
	}

	proc, err := startProcess(cmd)
	if err != nil {
		return err
	}

	e.process = proc

	e.logger.Debug("Emulator started",
		slog.String("command", cmd.String()),
		slog.Int("pid", proc.pid()))

	return nil
}

// Stop terminates the emulator process and waits for its exit.
//
// The [Emulator] is not locked while waiting, so [Emulator.Running] keeps
// reporting true until the process is gone.
func (e *Emulator) Stop(ctx context.Context, mode StopMode) error {
	e.mu.Lock()

	if !e.running() {
		e.mu.Unlock()
		return ErrNotStarted
	}

	proc := e.process

	e.closeSession()
	e.mu.Unlock()

	if mode == StopGraceful {
		err := e.interrupt(ctx, proc)
		if err != nil {
			return err
		}
	}

	if !proc.exited() {
		err := proc.signal(sigKill)
		if err != nil {
			return err
		}

		err = proc.wait(ctx)
		if ctx.Err() != nil {
			return err
		}
	}

	e.mu.Lock()
	if e.process == proc {
		e.process = nil
	}
	e.mu.Unlock()

	e.logger.Debug("Emulator stopped",
		slog.Int("pid", proc.pid()),
		slog.String("mode", mode.String()))

	return nil
}

// interrupt sends an interrupt and waits up to the stop timeout for the exit.
func (e *Emulator) interrupt(ctx context.Context, proc *process) error {
	err := proc.signal(sigInterrupt)
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.stopTimeout)
	defer cancel()

	_ = proc.wait(waitCtx)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !proc.exited() {
		e.logger.Debug("Emulator did not exit in time, killing",
			slog.Int("pid", proc.pid()),
			slog.Duration("timeout", e.stopTimeout))
	}

	return nil
}

// Restart stops the emulator process, if it is running, and starts it again.
func (e *Emulator) Restart(ctx context.Context) error {
	err := e.Stop(ctx, StopKill)
	if err != nil && !errors.Is(err, ErrNotStarted) {
		return fmt.Errorf("stop: %w", err)
	}

	return e.Start(ctx)
}

// Running returns if the emulator process started by this [Emulator] is
// alive.
func (e *Emulator) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.running()
}

func (e *Emulator) running() bool {
	return e.process != nil && !e.process.exited()
}

// Wait blocks until the emulator process exits and returns its exit error.
func (e *Emulator) Wait(ctx context.Context) error {
	e.mu.Lock()
	proc := e.process
	e.mu.Unlock()

	if proc == nil {
		return ErrNotStarted
	}

	return proc.wait(ctx)
}

// ResolvePort returns the console port of the emulator.
//
// If no port is configured, the consoles of all emulators listed by adb are
// asked for their device name. Consoles that cannot be queried are skipped.
// The first port with a matching name is used from then on.
func (e *Emulator) ResolvePort(ctx context.Context) (int, error) {
	port := e.Port()
	if port != 0 {
		return port, nil
	}

	ports, err := e.bridge.Ports(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ports: %w", err)
	}

	for _, candidate := range ports {
		name, err := e.consoleName(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}

			e.logger.Debug("Skipping console",
				slog.Int("port", candidate),
				slog.Any("error", err))

			continue
		}

		if name != e.name {
			continue
		}

		e.mu.Lock()
		e.port = candidate
		e.mu.Unlock()

		e.logger.Debug("Resolved console port",
			slog.String("name", e.name),
			slog.Int("port", candidate))

		return candidate, nil
	}

	return 0, fmt.Errorf("%w: %s", ErrPortNotFound, e.name)
}

func (e *Emulator) consoleName(ctx context.Context, port int) (string, error) {
	session := console.New(port, e.consoleOpts...)
	defer session.Close()

	return session.AVDName(ctx)
}

// Console returns the console session of the emulator. The session is shared
// by all callers and closed when the emulator is stopped.
func (e *Emulator) Console(ctx context.Context) (*console.Session, error) {
	port, err := e.ResolvePort(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil || e.session.Port() != port {
		e.closeSession()
		e.session = console.New(port, e.consoleOpts...)
	}

	return e.session, nil
}

func (e *Emulator) closeSession() {
	if e.session == nil {
		return
	}

	err := e.session.Close()
	if err != nil {
		e.logger.Debug("Closing console session failed", slog.Any("error", err))
	}

	e.session = nil
}
