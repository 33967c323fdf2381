package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/track-market/internal/api"
	"github.com/rickgao/track-market/internal/auth"
	"github.com/rickgao/track-market/internal/config"
	"github.com/rickgao/track-market/internal/database"
	"github.com/rickgao/track-market/internal/feed"
	"github.com/rickgao/track-market/internal/ledger"
	"github.com/rickgao/track-market/internal/market"
	"github.com/rickgao/track-market/internal/metrics"
	"github.com/rickgao/track-market/internal/payment"
	"github.com/rickgao/track-market/internal/poller"
	"github.com/rickgao/track-market/internal/registry"
	"github.com/rickgao/track-market/internal/router"
	"github.com/rickgao/track-market/internal/version"
	"github.com/rickgao/track-market/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/marketd.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "config", *configPath, "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting marketd",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketd failed", "error", err)
		os.Exit(1)
	}

	logger.Info("marketd stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// component is anything with the Start/Stop lifecycle.
type component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type namedComponent struct {
	name string
	component
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Database
	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		var err error
		pool, err = database.Open(ctx, cfg.Database, logger.With("component", "database"))
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("database connected")
	}

	// Settlement
	var settler payment.Settler
	switch cfg.Payments.Backend {
	case config.PaymentsPostgres:
		settler = payment.NewJournal(pool, logger.With("component", "payments"))
	default:
		settler = payment.NewBook(logger.With("component", "payments"))
	}
	logger.Info("payment settlement ready", "backend", cfg.Payments.Backend)

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(logger.With("component", "metrics"))
	}

	// Event router and ledger
	rt := router.New(router.Config{
		InputBufferSize: cfg.Writers.BufferSize,
		BufferSize:      cfg.Writers.BufferSize,
		MaxBufferSize:   cfg.Writers.MaxBufferSize,
	}, logger.With("component", "router"))

	ledgerOpts := []ledger.Option{
		ledger.WithPublisher(rt),
		ledger.WithLogger(logger.With("component", "ledger")),
	}
	if m != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithObserver(m))
	}
	l := ledger.New(ledger.Config{HistorySize: cfg.Ledger.HistorySize}, settler, ledgerOpts...)

	// Registry and marketplace
	beneficiary, err := cfg.Registry.Beneficiary()
	if err != nil {
		return err
	}
	reg, err := registry.New(registry.Config{
		UnitPrice:          cfg.Registry.UnitPrice,
		RoyaltyBeneficiary: beneficiary,
		Artist:             cfg.Registry.Artist,
		Collection:         cfg.Registry.Collection,
	}, l, logger.With("component", "registry"))
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	recipient, err := cfg.Market.Recipient()
	if err != nil {
		return err
	}
	mkt, err := market.New(market.Config{
		FeeBasisPoints: cfg.Market.FeeBasisPoints,
		FeeRecipient:   recipient,
	}, l, reg, logger.With("component", "market"))
	if err != nil {
		return fmt.Errorf("create marketplace: %w", err)
	}

	// Consumers, started after the router and stopped after it drains.
	var consumers []namedComponent
	var snapshotHandlers []poller.SnapshotHandler

	if pool != nil {
		ew := writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
		}, rt.Subscribe("event_writer").Events, pool, logger.With("component", "event_writer"))
		consumers = append(consumers, namedComponent{"event writer", ew})
		snapshotHandlers = append(snapshotHandlers, writer.NewSnapshotWriter(pool, logger.With("component", "snapshot_writer")))
	}

	var hub *feed.Hub
	if cfg.Feed.Enabled {
		hub = feed.NewHub(feed.Config{
			PingInterval: cfg.Feed.PingInterval,
			WriteTimeout: cfg.Feed.WriteTimeout,
			SendBuffer:   cfg.Feed.SendBuffer,
		}, l, rt.Subscribe("feed"), logger.With("component", "feed"))
		consumers = append(consumers, namedComponent{"feed", hub})
	}

	if m != nil {
		rec := metrics.NewEventRecorder(m, rt.Subscribe("metrics"), logger.With("component", "metrics"))
		consumers = append(consumers, namedComponent{"event recorder", rec})
		snapshotHandlers = append(snapshotHandlers, m)
	}

	var snapshots *poller.Poller
	if cfg.Snapshots.Enabled {
		snapshots = poller.New(poller.Config{
			Interval: cfg.Snapshots.Interval,
			Timeout:  cfg.Snapshots.Timeout,
		}, mkt, snapshotHandlers, logger.With("component", "poller"))
	}

	// API
	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		verifier, err = auth.LoadVerifier(cfg.Auth.Keys, cfg.Auth.MaxSkew)
		if err != nil {
			return fmt.Errorf("load auth keys: %w", err)
		}
		logger.Info("request signing enabled", "keys", len(cfg.Auth.Keys))
	}

	apiServer := api.NewServer(reg, mkt, l, verifier, logger.With("component", "api"))
	if hub != nil {
		apiServer.Handle("GET "+cfg.Feed.Path, hub)
	}
	var handler http.Handler = apiServer.Handler()
	if m != nil {
		handler = m.Middleware(apiServer.Handler())
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	// Start pipeline
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}
	for _, c := range consumers {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start %s: %w", c.name, err)
		}
	}
	if snapshots != nil {
		if err := snapshots.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics server listening", "addr", metricsServer.Addr, "path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop intake first so the router sees no new events while draining.
		if snapshots != nil {
			snapshots.Stop(shutdownCtx)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown", "error", err)
		}
		rt.Stop(shutdownCtx)
		for i := len(consumers) - 1; i >= 0; i-- {
			if err := consumers[i].Stop(shutdownCtx); err != nil {
				logger.Warn("component stop", "component", consumers[i].name, "error", err)
			}
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown", "error", err)
			}
		}
		return nil
	})

	logger.Info("marketd running",
		"instance_id", cfg.Instance.ID,
		"unit_price", cfg.Registry.UnitPrice,
		"fee_basis_points", cfg.Market.FeeBasisPoints,
		"feed", cfg.Feed.Enabled,
		"database", cfg.Database.Enabled,
	)

	return g.Wait()
}
