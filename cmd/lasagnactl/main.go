package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"

	"lasagna/internal/config"
	"lasagna/internal/logging"
)

var BuildVersion = "dev"

func main() {
	rootCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(run(rootCtx, os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every subcommand needs once global options are parsed.
type app struct {
	ctx    context.Context
	opts   config.Options
	out    io.Writer
	logger *logging.Logger
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{ctx: ctx, out: stdout}
	parser := config.NewParser(&a.opts)
	parser.Name = "lasagnactl"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}
		if err := a.prepare(stderr); err != nil {
			return err
		}
		defer a.logger.Close()
		return cmd.Execute(args)
	}

	mustAdd(parser, "inspect", "Decode a credential and report its expiry", &inspectCommand{app: a})
	mustAdd(parser, "topic", "Report whether a topic requires a credential", &topicCommand{app: a})
	mustAdd(parser, "fetch", "Fetch a credential from the configured source", &fetchCommand{app: a})
	mustAdd(parser, "save", "Save current options as defaults", &saveCommand{app: a})
	mustAdd(parser, "version", "Print the build version", &versionCommand{app: a})

	if _, err := parser.ParseArgs(args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagErr.Message)
			return 0
		}
		fmt.Fprintln(stderr, err)
		if errors.As(err, &flagErr) {
			return 2
		}
		return 1
	}
	return 0
}

func mustAdd(parser *flags.Parser, name, short string, data any) {
	if _, err := parser.AddCommand(name, short, "", data); err != nil {
		panic(fmt.Sprintf("register %s command: %v", name, err))
	}
}

// prepare merges saved settings into the parsed options and sets up logging.
func (a *app) prepare(stderr io.Writer) error {
	saved, err := config.LoadSettings()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load settings: %w", err)
	}
	opts, err := config.Resolve(config.MergeOptionsWithSettings(a.opts, saved))
	if err != nil {
		return err
	}
	a.opts = opts

	a.logger = logging.New(opts.Debug)
	a.logger.SetOutput(stderr)
	if opts.PersistLogs {
		dir := opts.LogDir
		if dir == "" {
			if dir, err = logging.DefaultLogDirPath(); err != nil {
				return fmt.Errorf("resolve log directory: %w", err)
			}
		}
		if err := a.logger.EnableFilePersistence(dir, 0); err != nil {
			return fmt.Errorf("enable log persistence: %w", err)
		}
	}
	return nil
}

type versionCommand struct {
	app *app
}

func (c *versionCommand) Execute([]string) error {
	_, err := fmt.Fprintln(c.app.out, BuildVersion)
	return err
}
