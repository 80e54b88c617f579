// Command mash-exchange runs a shared download cycle against a simulated
// MASH device.
//
// The device's attributes and the consumer groups subscribed to them come
// from a YAML configuration file (a built-in EVSE demo is used without one).
// Every group becomes a Connection of one Downloader, so all groups are
// served by a single batched read per period.
//
// Usage:
//
//	mash-exchange [flags]
//	mash-exchange events [flags] <file.mlog>
//
// Flags:
//
//	-config string      Configuration file path
//	-period duration    Download period (default from config, else 1s)
//	-cycles int         Stop after this many cycles (0 = run until interrupted)
//	-event-log string   Write a CBOR cycle event log to this file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-interactive        Start the interactive console
//
// Examples:
//
//	# Run the demo for five cycles
//	mash-exchange -cycles 5
//
//	# Run a custom configuration interactively and record cycle events
//	mash-exchange -config site.yaml -interactive -event-log site.mlog
//
//	# Show the failed cycles of a recorded run
//	mash-exchange events -outcome failure site.mlog
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mash-protocol/mash-exchange/cmd/mash-exchange/commands"
	"github.com/mash-protocol/mash-exchange/pkg/log"
)

// Options holds the command-line options.
type Options struct {
	ConfigFile  string
	Period      time.Duration
	Cycles      int
	EventLog    string
	LogLevel    string
	Interactive bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "events" {
		runEvents(os.Args[2:])
		return
	}

	var opts Options
	flag.StringVar(&opts.ConfigFile, "config", "", "Configuration file path")
	flag.DurationVar(&opts.Period, "period", 0, "Download period (default from config, else 1s)")
	flag.IntVar(&opts.Cycles, "cycles", 0, "Stop after this many cycles (0 = run until interrupted)")
	flag.StringVar(&opts.EventLog, "event-log", "", "Write a CBOR cycle event log to this file")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive console")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	cfg := DefaultConfig()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = LoadConfig(opts.ConfigFile); err != nil {
			return err
		}
	}
	if opts.Period > 0 {
		cfg.Period = opts.Period
	}
	if cfg.Period == 0 {
		cfg.Period = time.Second
	}
	if opts.EventLog != "" {
		cfg.EventLog = opts.EventLog
	}

	out, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	var console *Console
	if opts.Interactive {
		var err error
		if console, err = NewConsole(); err != nil {
			return err
		}
		out, errOut = console.Stdout(), console.Stderr()
	}

	logger := setupLogging(opts.LogLevel, errOut)

	var events []log.Logger
	if cfg.EventLog != "" {
		fileLogger, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			return fmt.Errorf("failed to open event log: %w", err)
		}
		defer fileLogger.Close()
		events = append(events, fileLogger)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		events = append(events, log.NewSlogAdapter(logger))
	}

	var eventLogger log.Logger
	if len(events) > 0 {
		eventLogger = log.NewMultiLogger(events...)
	}

	app, err := NewApp(cfg, logger, eventLogger, out)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if console != nil {
		console.SetApp(app)
		go console.Run(ctx, cancel)
	}

	logger.Info("download started",
		"device", cfg.DeviceID,
		"nodes", len(cfg.Nodes),
		"groups", len(cfg.Groups),
		"period", cfg.Period)

	err = app.Run(ctx, cfg.Period, opts.Cycles)
	logger.Info("download stopped", "cycles", app.Info().Cycles)
	return err
}

// setupLogging creates the slog logger for the given level name.
func setupLogging(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func runEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `mash-exchange events - View a cycle event log

Usage:
  mash-exchange events [flags] <file.mlog>

Flags:
`)
		fs.PrintDefaults()
	}

	scope := fs.String("scope", "", "Filter by scope (root or a connection token)")
	direction := fs.String("direction", "", "Filter by direction (download, upload)")
	outcome := fs.String("outcome", "", "Filter by outcome (success, failure, recovered)")
	stats := fs.Bool("stats", false, "Print statistics instead of events")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	filter := log.Filter{Scope: *scope}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}
	if *outcome != "" {
		o, err := commands.ParseOutcomeFlag(*outcome)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Outcome = &o
	}

	var err error
	if *stats {
		err = commands.RunStats(fs.Arg(0), filter, os.Stdout)
	} else {
		err = commands.RunEvents(fs.Arg(0), filter, os.Stdout)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
