// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package emulator_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aibor/avdctl/internal/config"
	"github.com/aibor/avdctl/internal/console"
	"github.com/aibor/avdctl/internal/console/consoletest"
	"github.com/aibor/avdctl/internal/emulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	scriptSleep = `echo "$@" >> started
exec sleep 30`
	scriptIgnoreInterrupt = `trap '' INT
while :; do sleep 0.05; done`
	scriptExit = `exit 0`
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBridge struct {
	ports    []int
	portsErr error
	states   map[int]string

	mu        sync.Mutex
	portCalls int
}

func (b *fakeBridge) Ports(context.Context) ([]int, error) {
	b.mu.Lock()
	b.portCalls++
	b.mu.Unlock()

	return b.ports, b.portsErr
}

func (b *fakeBridge) State(_ context.Context, port int) (string, error) {
	state, exists := b.states[port]
	if !exists {
		return "", errors.New("device not found")
	}

	return state, nil
}

func (b *fakeBridge) PortCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.portCalls
}

func fakeSDK(t *testing.T, script string) config.SDK {
	t.Helper()

	sdk := config.SDK{Home: t.TempDir()}

	require.NoError(t, os.MkdirAll(sdk.ToolsDir(), 0o755))

	content := "#!/bin/sh\n" + script + "\n"
	//nolint:gosec
	require.NoError(t, os.WriteFile(sdk.EmulatorPath(), []byte(content), 0o755))

	return sdk
}

func startedLines(t *testing.T, sdk config.SDK) []string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(sdk.ToolsDir(), "started"))
	if err != nil {
		return nil
	}

	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newEmulator(t *testing.T, sdk config.SDK, opts ...emulator.Option) *emulator.Emulator {
	t.Helper()

	e := emulator.New(sdk, "Pixel", opts...)
	t.Cleanup(func() {
		_ = e.Stop(context.Background(), emulator.StopKill)
	})

	return e
}

func closedPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return port
}

func nameServer(t *testing.T, name string) *consoletest.Server {
	t.Helper()

	return consoletest.NewServer(t, consoletest.Banner, consoletest.Static(map[string]string{
		"ping":     "I am alive!\r\nOK\r\n",
		"avd name": name + "\r\nOK\r\n",
	}))
}

func TestEmulator_Args(t *testing.T) {
	tests := []struct {
		name     string
		opts     []emulator.Option
		expected []string
	}{
		{
			name:     "minimal",
			expected: []string{"-avd", "Pixel"},
		},
		{
			name: "port and cold boot",
			opts: []emulator.Option{
				emulator.WithPort(5580),
				emulator.WithColdBoot(true),
			},
			expected: []string{"-avd", "Pixel", "-port", "5580", "-no-snapshot-load"},
		},
		{
			name: "extra args",
			opts: []emulator.Option{
				emulator.WithExtraArgs(emulator.ArgNoWindow, emulator.ArgMemory(2048)),
			},
			expected: []string{"-avd", "Pixel", "-no-window", "-memory", "2048"},
		},
		{
			name: "config",
			opts: []emulator.Option{
				emulator.WithConfig(config.Emulator{
					Port:     5580,
					ColdBoot: true,
					NoWindow: true,
					GPU:      "host",
					Props:    []string{"ro.debuggable=1"},
				}),
			},
			expected: []string{
				"-avd", "Pixel",
				"-port", "5580",
				"-no-snapshot-load",
				"-no-window",
				"-gpu", "host",
				"-prop", "ro.debuggable=1",
			},
		},
		{
			name: "option after config wins",
			opts: []emulator.Option{
				emulator.WithConfig(config.Emulator{Port: 5580}),
				emulator.WithPort(5590),
			},
			expected: []string{"-avd", "Pixel", "-port", "5590"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := emulator.New(config.SDK{Home: "/sdk"}, "Pixel", tt.opts...)

			args, err := e.Args().Build()
			require.NoError(t, err)

			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestEmulator_Start(t *testing.T) {
	t.Run("lifecycle", func(t *testing.T) {
		sdk := fakeSDK(t, scriptSleep)
		e := newEmulator(t, sdk, emulator.WithPort(5580), emulator.WithColdBoot(true))

		require.NoError(t, e.Start(t.Context()))
		assert.True(t, e.Running())

		err := e.Start(t.Context())
		require.ErrorIs(t, err, emulator.ErrAlreadyStarted)

		require.Eventually(t, func() bool {
			return len(startedLines(t, sdk)) == 1
		}, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"-avd Pixel -port 5580 -no-snapshot-load"}, startedLines(t, sdk))

		require.NoError(t, e.Stop(t.Context(), emulator.StopKill))
		assert.False(t, e.Running())

		err = e.Stop(t.Context(), emulator.StopKill)
		require.ErrorIs(t, err, emulator.ErrNotStarted)
	})

	t.Run("missing executable", func(t *testing.T) {
		e := newEmulator(t, config.SDK{Home: t.TempDir()})

		err := e.Start(t.Context())
		require.Error(t, err)
		assert.False(t, e.Running())
	})

	t.Run("colliding args", func(t *testing.T) {
		sdk := fakeSDK(t, scriptSleep)
		e := newEmulator(t, sdk,
			emulator.WithPort(5580),
			emulator.WithExtraArgs(emulator.ArgPort(5590)))

		err := e.Start(t.Context())
		require.ErrorIs(t, err, emulator.ErrCollidingArgs)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		e := newEmulator(t, fakeSDK(t, scriptSleep))

		err := e.Start(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("process exits", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptExit))

		require.NoError(t, e.Start(t.Context()))
		require.NoError(t, e.Wait(t.Context()))
		assert.False(t, e.Running())

		err := e.Stop(t.Context(), emulator.StopKill)
		require.ErrorIs(t, err, emulator.ErrNotStarted)
	})
}

func TestEmulator_Stop(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptSleep))

		err := e.Stop(t.Context(), emulator.StopGraceful)
		require.ErrorIs(t, err, emulator.ErrNotStarted)
	})

	t.Run("graceful", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptSleep),
			emulator.WithStopTimeout(5*time.Second))

		require.NoError(t, e.Start(t.Context()))

		start := time.Now()
		require.NoError(t, e.Stop(t.Context(), emulator.StopGraceful))
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.False(t, e.Running())
	})

	t.Run("graceful falls back to kill", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptIgnoreInterrupt),
			emulator.WithStopTimeout(200*time.Millisecond))

		require.NoError(t, e.Start(t.Context()))

		// Give the shell time to install the trap.
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, e.Stop(t.Context(), emulator.StopGraceful))
		assert.False(t, e.Running())
	})

	t.Run("queries answered while waiting", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptIgnoreInterrupt),
			emulator.WithPort(5580),
			emulator.WithStopTimeout(2*time.Second))

		require.NoError(t, e.Start(t.Context()))

		// Give the shell time to install the trap.
		time.Sleep(100 * time.Millisecond)

		stopped := make(chan error, 1)

		go func() {
			stopped <- e.Stop(context.Background(), emulator.StopGraceful)
		}()

		time.Sleep(200 * time.Millisecond)

		answered := make(chan bool, 1)

		go func() {
			_ = e.Port()
			answered <- e.Running()
		}()

		select {
		case running := <-answered:
			assert.True(t, running, "running until the process is gone")
		case <-time.After(time.Second):
			t.Error("queries blocked by stop")
		}

		require.NoError(t, <-stopped)
		assert.False(t, e.Running())
	})
}

func TestEmulator_Restart(t *testing.T) {
	sdk := fakeSDK(t, scriptSleep)
	e := newEmulator(t, sdk)

	require.NoError(t, e.Restart(t.Context()), "restart when stopped starts")
	require.Eventually(t, func() bool {
		return len(startedLines(t, sdk)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, e.Restart(t.Context()))
	assert.True(t, e.Running())
	require.Eventually(t, func() bool {
		return len(startedLines(t, sdk)) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestEmulator_ResolvePort(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		bridge := &fakeBridge{}
		e := newEmulator(t, config.SDK{}, emulator.WithPort(5580), emulator.WithBridge(bridge))

		port, err := e.ResolvePort(t.Context())
		require.NoError(t, err)

		assert.Equal(t, 5580, port)
		assert.Zero(t, bridge.PortCalls())
	})

	t.Run("discovered", func(t *testing.T) {
		other := nameServer(t, "Other")
		pixel := nameServer(t, "Pixel")
		bridge := &fakeBridge{
			ports: []int{closedPort(t), other.Port(), pixel.Port()},
		}
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(bridge))

		port, err := e.ResolvePort(t.Context())
		require.NoError(t, err)
		assert.Equal(t, pixel.Port(), port)
		assert.Equal(t, pixel.Port(), e.Port())

		port, err = e.ResolvePort(t.Context())
		require.NoError(t, err)
		assert.Equal(t, pixel.Port(), port)
		assert.Equal(t, 1, bridge.PortCalls(), "resolved port is kept")

		assert.Equal(t, []string{"avd name"}, other.Received())
		assert.Equal(t, 1, other.Connections(), "session closed after query")
	})

	t.Run("not found", func(t *testing.T) {
		other := nameServer(t, "Other")
		bridge := &fakeBridge{ports: []int{other.Port()}}
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(bridge))

		_, err := e.ResolvePort(t.Context())
		require.ErrorIs(t, err, emulator.ErrPortNotFound)
		assert.Zero(t, e.Port())
	})

	t.Run("bridge failure", func(t *testing.T) {
		bridge := &fakeBridge{portsErr: assert.AnError}
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(bridge))

		_, err := e.ResolvePort(t.Context())
		require.ErrorIs(t, err, assert.AnError)
	})
}

func TestEmulator_Console(t *testing.T) {
	server := nameServer(t, "Pixel")
	e := newEmulator(t, fakeSDK(t, scriptSleep),
		emulator.WithPort(server.Port()),
		emulator.WithBridge(&fakeBridge{}))

	session, err := e.Console(t.Context())
	require.NoError(t, err)
	assert.Equal(t, server.Port(), session.Port())

	again, err := e.Console(t.Context())
	require.NoError(t, err)
	assert.Same(t, session, again)

	ok, err := session.Ping(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, session.Connected())

	require.NoError(t, e.Start(t.Context()))
	require.NoError(t, e.Stop(t.Context(), emulator.StopKill))
	assert.False(t, session.Connected(), "session closed on stop")
}

func TestEmulator_Status(t *testing.T) {
	koServer := func(t *testing.T) *consoletest.Server {
		t.Helper()

		return consoletest.NewServer(t, consoletest.Banner, consoletest.Static(nil))
	}

	tests := []struct {
		name     string
		start    bool
		server   func(t *testing.T) *consoletest.Server
		state    string
		expected emulator.Status
	}{
		{
			name:     "not started",
			server:   func(t *testing.T) *consoletest.Server { t.Helper(); return nameServer(t, "Pixel") },
			state:    "device",
			expected: emulator.StatusOff,
		},
		{
			name:     "on",
			start:    true,
			server:   func(t *testing.T) *consoletest.Server { t.Helper(); return nameServer(t, "Pixel") },
			state:    "device",
			expected: emulator.StatusOn,
		},
		{
			name:     "adb offline",
			start:    true,
			server:   func(t *testing.T) *consoletest.Server { t.Helper(); return nameServer(t, "Pixel") },
			state:    "offline",
			expected: emulator.StatusLimbo,
		},
		{
			name:     "adb unknown device",
			start:    true,
			server:   func(t *testing.T) *consoletest.Server { t.Helper(); return nameServer(t, "Pixel") },
			expected: emulator.StatusLimbo,
		},
		{
			name:     "ping fails",
			start:    true,
			server:   koServer,
			state:    "device",
			expected: emulator.StatusLimbo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tt.server(t)
			bridge := &fakeBridge{states: map[int]string{}}

			if tt.state != "" {
				bridge.states[server.Port()] = tt.state
			}

			e := newEmulator(t, fakeSDK(t, scriptSleep),
				emulator.WithPort(server.Port()),
				emulator.WithBridge(bridge))

			if tt.start {
				require.NoError(t, e.Start(t.Context()))
			}

			status, err := e.Status(t.Context())
			require.NoError(t, err)

			assert.Equal(t, tt.expected, status)
		})
	}

	t.Run("console unreachable", func(t *testing.T) {
		port := closedPort(t)
		e := newEmulator(t, fakeSDK(t, scriptSleep),
			emulator.WithPort(port),
			emulator.WithBridge(&fakeBridge{states: map[int]string{port: "device"}}))

		require.NoError(t, e.Start(t.Context()))

		status, err := e.Status(t.Context())
		require.NoError(t, err)

		assert.Equal(t, emulator.StatusLimbo, status)
	})

	t.Run("port not found", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptSleep), emulator.WithBridge(&fakeBridge{}))

		require.NoError(t, e.Start(t.Context()))

		status, err := e.Status(t.Context())
		require.NoError(t, err)

		assert.Equal(t, emulator.StatusLimbo, status)
	})
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "off", emulator.StatusOff.String())
	assert.Equal(t, "limbo", emulator.StatusLimbo.String())
	assert.Equal(t, "on", emulator.StatusOn.String())
	assert.Equal(t, "Status(7)", emulator.Status(7).String())
}

func TestEmulator_WaitForConsole(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := nameServer(t, "Pixel")
		e := newEmulator(t, fakeSDK(t, scriptSleep),
			emulator.WithPort(server.Port()),
			emulator.WithBridge(&fakeBridge{}))

		require.NoError(t, e.Start(t.Context()))
		require.NoError(t, e.WaitForConsole(t.Context()))
	})

	t.Run("not started", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptSleep), emulator.WithBridge(&fakeBridge{}))

		err := e.WaitForConsole(t.Context())
		require.ErrorIs(t, err, emulator.ErrNotStarted)
	})

	t.Run("timeout", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, scriptSleep),
			emulator.WithPort(closedPort(t)),
			emulator.WithBridge(&fakeBridge{}),
			emulator.WithWaitTimeout(500*time.Millisecond),
			emulator.WithConsoleOptions(console.WithDialTimeout(100*time.Millisecond)))

		require.NoError(t, e.Start(t.Context()))

		err := e.WaitForConsole(t.Context())
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("process exits while waiting", func(t *testing.T) {
		e := newEmulator(t, fakeSDK(t, "sleep 0.3"),
			emulator.WithPort(closedPort(t)),
			emulator.WithBridge(&fakeBridge{}),
			emulator.WithWaitTimeout(time.Minute))

		require.NoError(t, e.Start(t.Context()))

		err := e.WaitForConsole(t.Context())
		require.ErrorIs(t, err, emulator.ErrNotStarted)
	})
}

func TestEmulator_Probe(t *testing.T) {
	t.Run("not running here but booted", func(t *testing.T) {
		server := nameServer(t, "Pixel")
		bridge := &fakeBridge{
			ports:  []int{server.Port()},
			states: map[int]string{server.Port(): "device"},
		}
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(bridge))

		status, err := e.Probe(t.Context())
		require.NoError(t, err)
		assert.Equal(t, emulator.StatusOn, status)

		status, err = e.Status(t.Context())
		require.NoError(t, err)
		assert.Equal(t, emulator.StatusOff, status, "status requires own process")
	})

	t.Run("not found", func(t *testing.T) {
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(&fakeBridge{}))

		status, err := e.Probe(t.Context())
		require.NoError(t, err)
		assert.Equal(t, emulator.StatusOff, status)
	})

	t.Run("configured port unreachable", func(t *testing.T) {
		port := closedPort(t)
		e := newEmulator(t, config.SDK{},
			emulator.WithPort(port),
			emulator.WithBridge(&fakeBridge{states: map[int]string{port: "device"}}))

		status, err := e.Probe(t.Context())
		require.NoError(t, err)
		assert.Equal(t, emulator.StatusOff, status)
	})

	t.Run("configured port answers with failure", func(t *testing.T) {
		server := consoletest.NewServer(t, consoletest.Banner, consoletest.Static(nil))
		e := newEmulator(t, config.SDK{},
			emulator.WithPort(server.Port()),
			emulator.WithBridge(&fakeBridge{states: map[int]string{server.Port(): "device"}}))

		status, err := e.Probe(t.Context())
		require.NoError(t, err)
		assert.Equal(t, emulator.StatusLimbo, status)
	})

	t.Run("bridge failure", func(t *testing.T) {
		e := newEmulator(t, config.SDK{}, emulator.WithBridge(&fakeBridge{portsErr: assert.AnError}))

		_, err := e.Probe(t.Context())
		require.ErrorIs(t, err, assert.AnError)
	})
}
