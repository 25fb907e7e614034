// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aibor/avdctl/internal/config"
	"github.com/aibor/avdctl/internal/console"
	"github.com/aibor/avdctl/internal/tool"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func newFlags(args []string, cfg IO) (*flags, error) {
	args, err := MergedArgs(args, os.DirFS("."), localConfigFile)
	if err != nil {
		return nil, err
	}

	flags, err := parseArgs(args, cfg.Stderr)
	if err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}

	return flags, nil
}

func loadConfig(flags *flags) (*config.Config, error) {
	paths := config.SearchPaths()
	if flags.configDir != "" {
		paths = []string{flags.configDir}
	}

	v := config.New(paths...)
	flags.bindConfig(v)

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func run(ctx context.Context, flags *flags, logger *slog.Logger, cfg IO) error {
	conf, err := loadConfig(flags)
	if err != nil {
		return err
	}

	return newApp(conf, cfg.Stdout, logger).dispatch(ctx, flags)
}

func handleParseArgsError(err error) int {
	// [flag.ErrHelp] is returned when help is requested. So exit without error
	// in this case.
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}

	// ParseArgs already prints errors, so we just exit without an error.
	if !errors.Is(err, &ParseArgsError{}) {
		slog.Error(err.Error())
	}

	return -1
}

func handleRunError(err error, logger *slog.Logger) int {
	var cmdErr *console.CommandError
	if errors.As(err, &cmdErr) {
		logger.Error("Console command failed",
			slog.String("command", cmdErr.Command),
			slog.String("reply", cmdErr.Reply.Diagnostic()))

		return -1
	}

	var toolErr *tool.Error
	if errors.As(err, &toolErr) {
		logger.Error("Tool failed",
			slog.String("tool", toolErr.Name),
			slog.Any("error", toolErr.Err),
			slog.String("output", toolErr.Output))

		return -1
	}

	if errors.Is(err, config.ErrAndroidHomeNotSet) {
		logger.Warn("Set ANDROID_HOME or android_home in avdctl.yaml")
	}

	logger.Error(err.Error())

	return -1
}

// Run is the main entry point for the CLI command. The args must not contain
// the program name.
func Run(ctx context.Context, args []string, cfg IO) int {
	flags, err := newFlags(args, cfg)
	if err != nil {
		return handleParseArgsError(err)
	}

	logger := setupLogging(cfg.Stderr, flags.debug)

	err = run(ctx, flags, logger, cfg)
	if err != nil {
		return handleRunError(err, logger)
	}

	return 0
}
