// SPDX-FileCopyrightText: 2026 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/aibor/avdctl/internal/adb"
	"github.com/aibor/avdctl/internal/avd"
	"github.com/aibor/avdctl/internal/config"
	"github.com/aibor/avdctl/internal/console"
	"github.com/aibor/avdctl/internal/emulator"
	"github.com/aibor/avdctl/internal/tool"
)

type command struct {
	minArgs int
	maxArgs int
	run     func(a *app, ctx context.Context, f *flags, args []string) error
}

func commands() map[string]command {
	return map[string]command{
		"list":     {0, 0, (*app).list},
		"rename":   {2, 2, (*app).rename},
		"start":    {1, 1, (*app).start},
		"status":   {1, 1, (*app).status},
		"ping":     {1, 1, (*app).ping},
		"name":     {1, 1, (*app).name},
		"snapshot": {2, 3, (*app).snapshot},
	}
}

// app holds the dependencies shared by all commands.
type app struct {
	cfg    *config.Config
	runner tool.Runner
	stdout io.Writer
	logger *slog.Logger
}

func newApp(cfg *config.Config, stdout io.Writer, logger *slog.Logger) *app {
	return &app{
		cfg:    cfg,
		runner: &tool.ExecRunner{Logger: logger},
		stdout: stdout,
		logger: logger,
	}
}

func (a *app) dispatch(ctx context.Context, f *flags) error {
	cmd, exists := commands()[f.command]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, f.command)
	}

	if len(f.args) < cmd.minArgs || len(f.args) > cmd.maxArgs {
		return fmt.Errorf("%s: %w: %d", f.command, ErrArgCount, len(f.args))
	}

	a.logger.Debug("Running command",
		slog.String("command", f.command),
		slog.Any("args", f.args))

	return cmd.run(a, ctx, f, f.args)
}

func (a *app) consoleOptions() []console.Option {
	return []console.Option{
		console.WithDialTimeout(a.cfg.Console.DialTimeout),
		console.WithReplyTimeout(a.cfg.Console.ReplyTimeout),
		console.WithMaxReplySize(a.cfg.Console.MaxReplySize),
		console.WithLogger(a.logger),
	}
}

func (a *app) session(portArg string) (*console.Session, error) {
	port, err := strconv.Atoi(portArg)
	if err != nil || port <= 0 || port > config.PortMax {
		return nil, fmt.Errorf("%w: %s", config.ErrPortOutOfRange, portArg)
	}

	return console.New(port, a.consoleOptions()...), nil
}

func (a *app) manager() (*avd.Manager, error) {
	sdk, err := a.cfg.SDK()
	if err != nil {
		return nil, err
	}

	return avd.NewManager(sdk.AVDManagerPath(), sdk.ToolsDir(), a.runner, a.logger), nil
}

func (a *app) emulator(avdName string, opts ...emulator.Option) (*emulator.Emulator, error) {
	sdk, err := a.cfg.SDK()
	if err != nil {
		return nil, err
	}

	bridge := adb.NewBridge(sdk.ADBPath(), sdk.PlatformToolsDir(), a.runner, a.logger)

	opts = append([]emulator.Option{
		emulator.WithConfig(a.cfg.Emulator),
		emulator.WithBridge(bridge),
		emulator.WithConsoleOptions(a.consoleOptions()...),
		emulator.WithWaitTimeout(a.cfg.Console.WaitTimeout),
		emulator.WithLogger(a.logger),
	}, opts...)

	return emulator.New(sdk, avdName, opts...), nil
}

func (a *app) list(ctx context.Context, _ *flags, _ []string) error {
	manager, err := a.manager()
	if err != nil {
		return err
	}

	profiles, err := manager.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDEVICE\tTARGET\tERROR")

	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Device, p.Target, p.Error)
	}

	return w.Flush()
}

func (a *app) rename(ctx context.Context, _ *flags, args []string) error {
	manager, err := a.manager()
	if err != nil {
		return err
	}

	return manager.Rename(ctx, args[0], args[1])
}

func (a *app) start(ctx context.Context, f *flags, args []string) error {
	var opts []emulator.Option

	if a.cfg.Emulator.Output != "" {
		output, err := os.OpenFile(a.cfg.Emulator.Output,
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open emulator output: %w", err)
		}
		// The child process has its own copy once started.
		defer output.Close()

		opts = append(opts, emulator.WithOutput(output))
	}

	emu, err := a.emulator(args[0], opts...)
	if err != nil {
		return err
	}

	err = emu.Start(ctx)
	if err != nil {
		return err
	}

	if f.noWait {
		fmt.Fprintf(a.stdout, "%s started\n", emu.Name())
		return nil
	}

	err = emu.WaitForConsole(ctx)
	if err != nil {
		stopErr := emu.Stop(context.WithoutCancel(ctx), emulator.StopKill)
		if stopErr != nil {
			a.logger.Warn("Failed to stop emulator", slog.Any("error", stopErr))
		}

		return err
	}

	fmt.Fprintf(a.stdout, "%s started on port %d\n", emu.Name(), emu.Port())

	return nil
}

func (a *app) status(ctx context.Context, _ *flags, args []string) error {
	emu, err := a.emulator(args[0])
	if err != nil {
		return err
	}

	status, err := emu.Probe(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, status)

	return nil
}

func (a *app) ping(ctx context.Context, _ *flags, args []string) error {
	session, err := a.session(args[0])
	if err != nil {
		return err
	}
	defer session.Close()

	_, err = session.Ping(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "OK")

	return nil
}

func (a *app) name(ctx context.Context, _ *flags, args []string) error {
	session, err := a.session(args[0])
	if err != nil {
		return err
	}
	defer session.Close()

	avdName, err := session.AVDName(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, avdName)

	return nil
}

func (a *app) snapshot(ctx context.Context, _ *flags, args []string) error {
	action, portArg := args[0], args[1]

	var wantArgs int

	switch action {
	case "list":
		wantArgs = 2
	case "save", "load", "del":
		wantArgs = 3
	default:
		return fmt.Errorf("%w: snapshot %s", ErrUnknownCommand, action)
	}

	if len(args) != wantArgs {
		return fmt.Errorf("snapshot %s: %w: %d", action, ErrArgCount, len(args)-1)
	}

	session, err := a.session(portArg)
	if err != nil {
		return err
	}
	defer session.Close()

	snapshots := session.Snapshots()

	switch action {
	case "list":
		return a.printSnapshots(ctx, snapshots)
	case "save":
		_, err = snapshots.Save(ctx, args[2])
	case "load":
		_, err = snapshots.Load(ctx, args[2])
	case "del":
		_, err = snapshots.Delete(ctx, args[2])
	}

	return err
}

func (a *app) printSnapshots(ctx context.Context, snapshots *console.Snapshots) error {
	list, err := snapshots.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTAG\tSIZE\tDATE\tCLOCK")

	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Tag, s.Size, s.Date, s.Clock)
	}

	return w.Flush()
}
