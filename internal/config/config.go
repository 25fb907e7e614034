// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the avdctl configuration and locates the Android SDK
// tools.
//
// Values are read with increasing precedence from defaults, an optional
// avdctl.yaml file and environment variables with prefix AVDCTL_. The SDK
// location is also taken from ANDROID_HOME.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	fileName  = "avdctl"
	fileType  = "yaml"
	envPrefix = "AVDCTL"

	// AndroidHomeEnvVar is the conventional variable naming the SDK root.
	AndroidHomeEnvVar = "ANDROID_HOME"
)

const (
	KeyAndroidHome         = "android_home"
	KeyConsoleDialTimeout  = "console.dial_timeout"
	KeyConsoleReplyTimeout = "console.reply_timeout"
	KeyConsoleMaxReplySize = "console.max_reply_size"
	KeyConsoleWaitTimeout  = "console.wait_timeout"
	KeyEmulatorStopTimeout = "emulator.stop_timeout"
	KeyEmulatorOutput      = "emulator.output"
	KeyEmulatorPort        = "emulator.port"
	KeyEmulatorColdBoot    = "emulator.cold_boot"
	KeyEmulatorNoWindow    = "emulator.no_window"
	KeyEmulatorNoAudio     = "emulator.no_audio"
	KeyEmulatorNoSnapSave  = "emulator.no_snapshot_save"
	KeyEmulatorSnapshot    = "emulator.snapshot"
	KeyEmulatorMemory      = "emulator.memory"
	KeyEmulatorGPU         = "emulator.gpu"
	KeyEmulatorProps       = "emulator.props"
)

// PortMax is the highest valid console port.
const PortMax = 65535

// ErrAndroidHomeNotSet is returned if the SDK location is not configured.
var ErrAndroidHomeNotSet = errors.New("android home not set (set " +
	AndroidHomeEnvVar + ")")

// Console holds the settings for console sessions.
type Console struct {
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
	MaxReplySize int           `mapstructure:"max_reply_size"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
}

// Emulator holds the settings for emulator processes.
type Emulator struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// Output is a file the emulator output is appended to. If empty, the
	// output is discarded.
	Output string `mapstructure:"output"`

	// Port is the console port. If 0, it is discovered with adb.
	Port     int  `mapstructure:"port"`
	ColdBoot bool `mapstructure:"cold_boot"`

	NoWindow       bool   `mapstructure:"no_window"`
	NoAudio        bool   `mapstructure:"no_audio"`
	NoSnapshotSave bool   `mapstructure:"no_snapshot_save"`
	Snapshot       string `mapstructure:"snapshot"`
	// Memory is the guest memory in MB. 0 keeps the profile's value.
	Memory int    `mapstructure:"memory"`
	GPU    string `mapstructure:"gpu"`
	// Props are system properties in the form key=value.
	Props []string `mapstructure:"props"`
}

// Config is the complete avdctl configuration.
type Config struct {
	AndroidHome string   `mapstructure:"android_home"`
	Console     Console  `mapstructure:"console"`
	Emulator    Emulator `mapstructure:"emulator"`
}

// SearchPaths returns the default directories searched for the config file.
func SearchPaths() []string {
	paths := []string{"."}

	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "avdctl"))
	}

	return paths
}

// New returns a [viper.Viper] instance with defaults, environment bindings
// and the given config file search paths set up.
func New(paths ...string) *viper.Viper {
	v := viper.New()

	v.SetConfigName(fileName)
	v.SetConfigType(fileType)

	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The prefixed variable wins over the conventional one.
	_ = v.BindEnv(KeyAndroidHome, envPrefix+"_ANDROID_HOME", AndroidHomeEnvVar)

	setDefaults(v)

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAndroidHome, "")
	v.SetDefault(KeyConsoleDialTimeout, "5s")
	v.SetDefault(KeyConsoleReplyTimeout, "10s")
	v.SetDefault(KeyConsoleMaxReplySize, 1<<20)
	v.SetDefault(KeyConsoleWaitTimeout, "2m")
	v.SetDefault(KeyEmulatorStopTimeout, "10s")
	v.SetDefault(KeyEmulatorOutput, "")
	v.SetDefault(KeyEmulatorPort, 0)
	v.SetDefault(KeyEmulatorColdBoot, false)
	v.SetDefault(KeyEmulatorNoWindow, false)
	v.SetDefault(KeyEmulatorNoAudio, false)
	v.SetDefault(KeyEmulatorNoSnapSave, false)
	v.SetDefault(KeyEmulatorSnapshot, "")
	v.SetDefault(KeyEmulatorMemory, 0)
	v.SetDefault(KeyEmulatorGPU, "")
	v.SetDefault(KeyEmulatorProps, []string{})
}

// Load reads the configuration. A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	err := v.ReadInConfig()
	if err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config

	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values for plausibility. The SDK location is checked
// only when it is needed, see [Config.SDK].
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		KeyConsoleDialTimeout:  c.Console.DialTimeout,
		KeyConsoleReplyTimeout: c.Console.ReplyTimeout,
		KeyConsoleWaitTimeout:  c.Console.WaitTimeout,
		KeyEmulatorStopTimeout: c.Emulator.StopTimeout,
	}

	for key, value := range durations {
		if value < 0 {
			return fmt.Errorf("%s: %w: %s", key, ErrNegativeValue, value)
		}
	}

	counts := map[string]int{
		KeyConsoleMaxReplySize: c.Console.MaxReplySize,
		KeyEmulatorMemory:      c.Emulator.Memory,
	}

	for key, value := range counts {
		if value < 0 {
			return fmt.Errorf("%s: %w: %d", key, ErrNegativeValue, value)
		}
	}

	if c.Emulator.Port < 0 || c.Emulator.Port > PortMax {
		return fmt.Errorf("%s: %w: %d", KeyEmulatorPort, ErrPortOutOfRange, c.Emulator.Port)
	}

	for _, prop := range c.Emulator.Props {
		key, _, found := strings.Cut(prop, "=")
		if !found || key == "" {
			return fmt.Errorf("%s: %w: %q", KeyEmulatorProps, ErrInvalidProp, prop)
		}
	}

	return nil
}

var (
	// ErrNegativeValue is returned if a value must not be negative.
	ErrNegativeValue = errors.New("value must not be negative")
	// ErrPortOutOfRange is returned for ports outside of 0 to [PortMax].
	ErrPortOutOfRange = errors.New("port out of range")
	// ErrInvalidProp is returned for system properties not in the form
	// key=value.
	ErrInvalidProp = errors.New("invalid property, want key=value")
)

// SDK returns the SDK tool locations.
func (c *Config) SDK() (SDK, error) {
	if c.AndroidHome == "" {
		return SDK{}, ErrAndroidHomeNotSet
	}

	return SDK{Home: c.AndroidHome}, nil
}
