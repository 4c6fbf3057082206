package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"codeberg.org/mutker/ffdash/internal/alerts"
	"codeberg.org/mutker/ffdash/internal/channel"
	"codeberg.org/mutker/ffdash/internal/config"
	"codeberg.org/mutker/ffdash/internal/dashboard"
	"codeberg.org/mutker/ffdash/internal/demo"
	"codeberg.org/mutker/ffdash/internal/errors"
	"codeberg.org/mutker/ffdash/internal/history"
	"codeberg.org/mutker/ffdash/internal/latency"
	"codeberg.org/mutker/ffdash/internal/license"
	"codeberg.org/mutker/ffdash/internal/logger"
	"codeberg.org/mutker/ffdash/internal/metrics"
	"codeberg.org/mutker/ffdash/internal/mirror"
	"codeberg.org/mutker/ffdash/internal/pid"
	"codeberg.org/mutker/ffdash/internal/session"
	"codeberg.org/mutker/ffdash/internal/store"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	err := run(ctx, cancel)
	cancel()

	if rmErr := pid.Remove(cfg.PIDFile); rmErr != nil {
		logger.Error().Err(rmErr).Msg("Failed to remove PID file")
	}

	if err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("Exiting with error")
		} else {
			logger.Error().Err(err).Msg("Exiting with error")
		}
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

// run builds the component graph and blocks until ctx is canceled or the
// dashboard loop stops.
func run(ctx context.Context, cancel context.CancelFunc) error {
	errFactory := errors.New()
	log := logger.Default()

	mirrorSvc, err := mirror.New(mirror.Config{
		BaseURL: cfg.RemoteURL,
		Token:   cfg.RemoteToken,
	}, log.With("mirror"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	repo, err := store.Open(store.Config{
		DBPath:      cfg.DBPath,
		MaxSessions: cfg.MaxSessions,
	}, log.With("store"), store.WithMirror(mirrorSvc))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitStore, err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()

	source, probe, err := newSource(ctx, repo)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	dispatcher := alerts.NewDispatcher(
		alerts.NewLogNotifier(log.With("alerts"), os.Stdout),
		alerts.WithMinSpacing(cfg.AlertCooldown),
		alerts.WithLogger(log.With("alerts")),
	)

	deps := dashboard.Deps{
		Source:     source,
		Settings:   repo,
		Dispatcher: dispatcher,
		Recorder:   session.NewRecorder(repo, session.WithLogger(log.With("session"))),
		History:    history.New(),
		License:    license.Static(cfg.LicenseKey != ""),
	}
	if probe != nil {
		deps.Probe = probe
	}

	dash := dashboard.New(deps,
		dashboard.WithLogger(log.With("dashboard")),
		dashboard.WithDemo(cfg.Demo),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mirrorSvc.Run(ctx)
	}()

	if cfg.MetricsAddr != "" {
		srvDeps := metrics.Deps{Sessions: repo, Control: dash}
		if mirrorSvc != nil {
			srvDeps.Mirror = mirrorSvc
		}
		srv := metrics.New(cfg.MetricsAddr, dash, srvDeps, log.With("metrics"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Metrics server stopped")
				cancel()
			}
		}()
	}

	go handleSignals(ctx, cancel, dash)

	err = dash.Run(ctx)
	cancel()
	wg.Wait()

	if err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}
	return nil
}

// newSource returns the demo generator, or the WebSocket client and its
// latency probe.
func newSource(ctx context.Context, repo *store.Repository) (dashboard.Source, *latency.Probe, error) {
	if cfg.Demo {
		logger.Info().Msg("Demo mode: using synthetic telemetry, notifications are muted")
		return demo.New(demo.DefaultInterval, time.Now().UnixNano()), nil, nil
	}

	addr, err := resolveServer(ctx, repo)
	if err != nil {
		return nil, nil, err
	}

	client, err := channel.New(channel.Config{Address: addr}, logger.Default().With("channel"))
	if err != nil {
		return nil, nil, err
	}

	return client, latency.New(client.Address(), cfg.PingInterval, logger.Default().With("latency")), nil
}

// resolveServer picks the configured address, falling back to the last one
// used and then the default, and remembers it for the next start.
func resolveServer(ctx context.Context, repo *store.Repository) (string, error) {
	var stored string
	if cfg.Server == "" {
		addr, _, err := repo.ServerAddress(ctx)
		if err != nil {
			return "", err
		}
		stored = addr
	}
	addr := cfg.ServerAddress(stored)

	normalized, err := channel.NormalizeAddress(addr)
	if err != nil {
		return "", err
	}

	if err := repo.SetServerAddress(ctx, normalized); err != nil {
		logger.Warn().Err(err).Msg("Failed to remember server address")
	}

	logger.Info().Str("server", normalized).Msg("Using server")
	return normalized, nil
}

// handleSignals stops on SIGINT/SIGTERM and toggles recording on SIGUSR1.
func handleSignals(ctx context.Context, cancel context.CancelFunc, dash *dashboard.Dashboard) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig != syscall.SIGUSR1 {
				logger.Info().Msg("Received termination signal.")
				cancel()
				return
			}

			summary, saved, err := dash.ToggleRecording(ctx)
			switch {
			case err != nil:
				logger.Error().Err(err).Msg("Failed to toggle recording")
			case saved:
				logger.Info().
					Str("game", summary.GameName).
					Str("id", summary.ID).
					Msg("Manual recording stopped")
			default:
				logger.Info().Msg("Manual recording toggled")
			}
		}
	}
}
