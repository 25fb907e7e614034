// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package adb_test

import (
	"errors"
	"testing"

	"github.com/aibor/avdctl/internal/adb"
	"github.com/aibor/avdctl/internal/tool"
	"github.com/aibor/avdctl/internal/tool/tooltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const adbPath = "/sdk/platform-tools/adb"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		expected []int
	}{
		{
			name:     "no devices",
			out:      "List of devices attached\n\n",
			expected: []int{},
		},
		{
			name: "emulators in order",
			out: "List of devices attached\n" +
				"emulator-5556\tdevice\n" +
				"emulator-5554\toffline\n\n",
			expected: []int{5556, 5554},
		},
		{
			name: "physical devices ignored",
			out: "List of devices attached\n" +
				"0123456789ABCDEF\tdevice\n" +
				"emulator-5554\tdevice\n",
			expected: []int{5554},
		},
		{
			name:     "duplicates dropped",
			out:      "emulator-5554\tdevice\nemulator-5554\tdevice\n",
			expected: []int{5554},
		},
		{
			name:     "daemon startup noise",
			out:      "* daemon not running; starting now at tcp:5037\n* daemon started successfully\nList of devices attached\nemulator-5580\tdevice\n",
			expected: []int{5580},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adb.ParsePorts(tt.out))
		})
	}
}

func TestSerial(t *testing.T) {
	assert.Equal(t, "emulator-5554", adb.Serial(5554))
}

func TestBridge_Ports(t *testing.T) {
	runner := &tooltest.Runner{
		Results: map[string]tooltest.Result{
			adbPath + " devices": {Output: "List of devices attached\nemulator-5554\tdevice\n"},
		},
	}
	bridge := adb.NewBridge(adbPath, "/sdk/platform-tools", runner, nil)

	ports, err := bridge.Ports(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []int{5554}, ports)
	assert.Equal(t, "/sdk/platform-tools", runner.Calls()[0].Dir)
}

func TestBridge_State(t *testing.T) {
	tests := []struct {
		name          string
		result        tooltest.Result
		expected      string
		expectedErr   error
		expectedLines []string
	}{
		{
			name:     "device",
			result:   tooltest.Result{Output: "device\n"},
			expected: adb.StateDevice,
		},
		{
			name:     "windows line ending",
			result:   tooltest.Result{Output: "offline\r\n"},
			expected: "offline",
		},
		{
			name: "not found",
			result: tooltest.Result{
				Output: "error: device 'emulator-5554' not found\n",
				Err:    &tool.Error{Err: errors.New("exit status 1")},
			},
			expectedErr: &tool.Error{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &tooltest.Runner{
				Results: map[string]tooltest.Result{
					adbPath + " -s emulator-5554 get-state": tt.result,
				},
			}
			bridge := adb.NewBridge(adbPath, "", runner, nil)

			state, err := bridge.State(t.Context(), 5554)
			require.ErrorIs(t, err, tt.expectedErr)

			assert.Equal(t, tt.expected, state)
		})
	}
}

func TestBridge_States(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		runner := &tooltest.Runner{
			Results: map[string]tooltest.Result{
				adbPath + " -s emulator-5554 get-state": {Output: "device\n"},
				adbPath + " -s emulator-5556 get-state": {Output: "offline\n"},
			},
		}
		bridge := adb.NewBridge(adbPath, "", runner, nil)

		states, err := bridge.States(t.Context(), []int{5554, 5556})
		require.NoError(t, err)

		expected := map[int]string{
			5554: "device",
			5556: "offline",
		}
		assert.Equal(t, expected, states)
		assert.ElementsMatch(t, []string{
			adbPath + " -s emulator-5554 get-state",
			adbPath + " -s emulator-5556 get-state",
		}, runner.Lines())
	})

	t.Run("error", func(t *testing.T) {
		runner := &tooltest.Runner{
			Results: map[string]tooltest.Result{
				adbPath + " -s emulator-5556 get-state": {Err: &tool.Error{}},
			},
		}
		bridge := adb.NewBridge(adbPath, "", runner, nil)

		_, err := bridge.States(t.Context(), []int{5554, 5556})
		require.ErrorIs(t, err, &tool.Error{})
	})

	t.Run("none", func(t *testing.T) {
		bridge := adb.NewBridge(adbPath, "", &tooltest.Runner{}, nil)

		states, err := bridge.States(t.Context(), nil)
		require.NoError(t, err)

		assert.Empty(t, states)
	})
}
