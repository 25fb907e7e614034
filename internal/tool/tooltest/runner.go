// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tooltest provides a fake [tool.Runner] for tests.
package tooltest

import (
	"context"
	"strings"
	"sync"

	"github.com/aibor/avdctl/internal/tool"
)

// Result is the canned result of a single invocation.
type Result struct {
	Output string
	Err    error
}

// Call is a recorded invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line returns the invocation as a space separated string, without the
// directory.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner is a [tool.Runner] that returns canned results and records all
// calls. It is safe for concurrent use.
//
// Results are looked up by [Call.Line]. Invocations without a result return
// empty output and no error.
type Runner struct {
	Results map[string]Result

	mu    sync.Mutex
	calls []Call
}

var _ tool.Runner = (*Runner)(nil)

// Run implements [tool.Runner].
func (r *Runner) Run(
	_ context.Context,
	dir string,
	name string,
	args ...string,
) (string, error) {
	call := Call{Dir: dir, Name: name, Args: args}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	result := r.Results[call.Line()]

	return result.Output, result.Err
}

// Calls returns the recorded invocations.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]Call, len(r.calls))
	copy(calls, r.calls)

	return calls
}

// Lines returns [Call.Line] of all recorded invocations.
func (r *Runner) Lines() []string {
	calls := r.Calls()
	lines := make([]string, 0, len(calls))

	for _, call := range calls {
		lines = append(lines, call.Line())
	}

	return lines
}
