// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/postoffice/lib/clock"
	"github.com/bureau-foundation/postoffice/lib/config"
	"github.com/bureau-foundation/postoffice/lib/director"
	"github.com/bureau-foundation/postoffice/lib/process"
	"github.com/bureau-foundation/postoffice/lib/report"
	"github.com/bureau-foundation/postoffice/lib/runstate"
	"github.com/bureau-foundation/postoffice/lib/service"
	"github.com/bureau-foundation/postoffice/lib/statsdb"
	"github.com/bureau-foundation/postoffice/lib/version"
)

// leftoverMaxAge bounds how old a run-state marker may be and still be
// reported at startup.
const leftoverMaxAge = 24 * time.Hour

func main() {
	process.Exit(run())
}

type options struct {
	configPath   string
	scenarioDir  string
	logLevel     string
	statsDB      string
	archive      string
	statusSocket string
	stateDir     string
	seed         uint64
	showVersion  bool
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("postoffice", pflag.ContinueOnError)
	flagSet.StringVar(&opts.configPath, "config", "", "configuration file (default: $"+config.EnvVar+", then built-in defaults)")
	flagSet.StringVar(&opts.scenarioDir, "scenario-dir", "scenarios", "directory holding the timeout and explode scenario files")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.StringVar(&opts.statsDB, "stats-db", "", "SQLite database to record day reports in")
	flagSet.StringVar(&opts.archive, "archive", "", "write the run summary to this file (.zst or .lz4)")
	flagSet.StringVar(&opts.statusSocket, "status-socket", "", "serve status and terminate requests on this unix socket")
	flagSet.StringVar(&opts.stateDir, "state-dir", "", "directory for the run-state marker")
	flagSet.Uint64Var(&opts.seed, "seed", 0, "random seed (overrides the configuration; 0 keeps it)")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: postoffice [flags] [timeout|explode]\n\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.showVersion {
		fmt.Printf("postoffice %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("expected at most one scenario, got %d arguments", flagSet.NArg())
	}

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, err := loadConfig(opts, flagSet.Arg(0))
	if err != nil {
		return err
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}

	return simulate(cfg, opts, logger)
}

func loadConfig(opts options, scenario string) (*config.Config, error) {
	switch {
	case scenario != "":
		path, err := config.ProfilePath(opts.scenarioDir, scenario)
		if err != nil {
			return nil, err
		}
		return config.LoadFile(path)
	case opts.configPath != "":
		return config.LoadFile(opts.configPath)
	default:
		return config.Load()
	}
}

func simulate(cfg *config.Config, opts options, logger *slog.Logger) error {
	clk := clock.Real()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	marker, err := beginMarker(opts.stateDir, clk, runID, cfg, logger)
	if err != nil {
		return err
	}

	var store *statsdb.Store
	if opts.statsDB != "" {
		store, err = statsdb.Open(statsdb.Config{Path: opts.statsDB, Logger: logger})
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.BeginRun(context.Background(), runID, cfg.Digest(), clk.Now()); err != nil {
			return err
		}
	}

	directorOptions := director.Options{
		RunID:  runID,
		Logger: logger,
		Clock:  clk,
		Output: os.Stdout,
		OnDay: func(day report.Day) {
			if marker == nil {
				return
			}
			if err := marker.Advance(day.Day); err != nil {
				logger.Warn("could not update run state", "error", err)
			}
		},
	}
	if store != nil {
		directorOptions.Recorder = store
	}
	office, err := director.New(cfg, directorOptions)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	var background sync.WaitGroup
	serveCtx, stopServing := context.WithCancel(context.Background())
	defer func() {
		stopServing()
		background.Wait()
	}()

	background.Add(1)
	go func() {
		defer background.Done()
		select {
		case <-ctx.Done():
			logger.Info("signal received, terminating")
			office.Terminate()
		case <-serveCtx.Done():
		}
	}()

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, unix.SIGUSR1)
	defer signal.Stop(usr1)
	background.Add(1)
	go func() {
		defer background.Done()
		logSnapshots(serveCtx, office, usr1, logger)
	}()

	if opts.statusSocket != "" {
		server := service.NewSocketServer(opts.statusSocket, logger)
		service.RegisterOffice(server, office)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := server.Serve(serveCtx); err != nil {
				logger.Error("status socket failed", "error", err)
			}
		}()
	}

	summary, runErr := office.Run(context.Background())
	logger.Info("simulation finished",
		"days", len(summary.Days),
		"aborted", summary.Aborted,
		"reason", summary.Reason,
		"seed", office.Seed(),
	)

	if opts.archive != "" {
		if err := report.WriteArchive(opts.archive, summary); err != nil {
			logger.Error("could not write run archive", "path", opts.archive, "error", err)
		} else {
			logger.Info("run archive written", "path", opts.archive)
		}
	}
	if store != nil {
		outcome := statsdb.OutcomeCompleted
		if runErr != nil {
			outcome = statsdb.OutcomeAborted
		}
		if err := store.FinishRun(context.Background(), runID, summary.FinishedAt, outcome); err != nil {
			logger.Error("could not finish run in statistics store", "error", err)
		}
	}
	if marker != nil {
		if runErr == nil {
			err = marker.Complete()
		} else {
			err = marker.Abort(summary.Reason)
		}
		if err != nil {
			logger.Warn("could not update run state", "error", err)
		}
	}

	if errors.Is(runErr, director.ErrExplosion) {
		return process.WithCode(process.ExitExplosion, runErr)
	}
	return runErr
}

// beginMarker reports any marker an unclean previous run left behind
// and writes the marker of this run. It returns nil when stateDir is
// empty.
func beginMarker(stateDir string, clk clock.Clock, runID string, cfg *config.Config, logger *slog.Logger) (*runstate.Marker, error) {
	if stateDir == "" {
		return nil, nil
	}
	previous, found, err := runstate.Leftover(stateDir, clk.Now(), leftoverMaxAge)
	if err != nil {
		logger.Warn("unreadable run state from a previous run", "error", err)
	} else if found {
		logger.Warn("previous run did not finish cleanly",
			"previous_run_id", previous.RunID,
			"phase", previous.Phase,
			"day", previous.Day,
			"days", previous.Days,
			"reason", previous.Reason,
			"pid", previous.PID,
		)
	}
	return runstate.Begin(stateDir, clk, runstate.State{
		RunID:  runID,
		Digest: cfg.Digest(),
		Days:   cfg.Days,
	})
}

func logSnapshots(ctx context.Context, office *director.Director, signals <-chan os.Signal, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-signals:
		}
		snapshot, err := office.Snapshot(ctx)
		if err != nil {
			logger.Warn("status snapshot failed", "error", err)
			continue
		}
		waiting := make([]any, 0, 2*len(snapshot.Queues))
		for _, queue := range snapshot.Queues {
			waiting = append(waiting, queue.Service, queue.Waiting)
		}
		logger.Info("status",
			"day", snapshot.Day,
			"day_in_progress", snapshot.DayInProgress,
			"days_completed", snapshot.DaysCompleted,
			"ticket_ready", snapshot.TicketReady,
			slog.Group("waiting", waiting...),
		)
	}
}
