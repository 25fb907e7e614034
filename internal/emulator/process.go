// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package emulator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const (
	sigInterrupt = unix.SIGINT
	sigKill      = unix.SIGKILL
)

// process is a started emulator process. Its exit is collected in the
// background.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func startProcess(cmd *exec.Cmd) (*process, error) {
	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	p := &process{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *process) pid() int {
	return p.cmd.Process.Pid
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// signal sends sig to the process. A process that is gone already is not an
// error.
func (p *process) signal(sig unix.Signal) error {
	err := p.cmd.Process.Signal(sig)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("send %s: %w", unix.SignalName(sig), err)
	}

	return nil
}

// wait blocks until the process exited or the context is done. It returns the
// exit error of the process.
func (p *process) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
