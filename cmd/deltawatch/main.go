package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	corecfg "github.com/deltawatch-lab/deltawatch/internal/core/config"
	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage"
	"github.com/deltawatch-lab/deltawatch/internal/core/storage/postgres"
	"github.com/deltawatch-lab/deltawatch/internal/core/watermark"
	"github.com/deltawatch-lab/deltawatch/internal/delivery/teams"
	"github.com/deltawatch-lab/deltawatch/internal/extraction"
	"github.com/deltawatch-lab/deltawatch/internal/migrations"
	"github.com/deltawatch-lab/deltawatch/internal/monitor"
	"github.com/deltawatch-lab/deltawatch/internal/scheduler"
	"github.com/deltawatch-lab/deltawatch/internal/server"
	"golang.org/x/sync/errgroup"
)

const (
	transactionsJob = "transactions"
	paymentLogJob   = "payment-log"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// 0. Bootstrap logger, replaced once the config is known
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Info("Loaded config",
		"environment", cfg.Environment,
		"source_configured", cfg.Source.DSN != "",
		"state_configured", cfg.State.DSN != "",
		"webhook_configured", cfg.Webhook.URL != "",
		"timezone", cfg.Schedule.Timezone,
	)

	if err := run(cfg); err != nil {
		slog.Error("Shutdown with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func run(cfg *corecfg.Config) error {
	// 2. Source database. Missing configuration is not fatal.
	var (
		opener       storage.Opener
		sourceHealth server.HealthChecker
	)
	sourceAdapter, err := postgres.NewSourceAdapter(
		cfg.Source.DSN,
		cfg.Source.MaxOpenConns,
		cfg.Source.MaxIdleConns,
		cfg.Source.QueryTimeout,
	)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		slog.Warn("Source database is not configured; passes will report empty summaries")
	case err != nil:
		return fmt.Errorf("initialize source database: %w", err)
	default:
		defer sourceAdapter.Close()
		opener = sourceAdapter
		sourceHealth = sourceAdapter
	}

	// 3. State database for run history (optional)
	var (
		recorder    storage.RunRecorder
		history     server.RunLister
		stateHealth server.HealthChecker
	)
	if cfg.State.DSN != "" {
		stateDB, err := postgres.OpenStateDB(cfg.State.DSN)
		if err != nil {
			return err
		}
		defer closeDB(stateDB)

		if err := migrations.RunMigrations(stateDB, cfg.State.AutoMigrate); err != nil {
			return fmt.Errorf("run state migrations: %w", err)
		}
		runLog := postgres.NewRunLogAdapter(stateDB)
		recorder, history, stateHealth = runLog, runLog, runLog
	} else {
		slog.Info("State database not configured; run history disabled")
	}

	// 4. Delivery and jobs. Each monitor owns its own watermark store.
	loc := scheduler.LoadLocation(cfg.Schedule.Timezone)
	deps := monitor.Deps{
		Notifier: teams.NewSender(cfg.Webhook.URL, cfg.Webhook.Timeout, cfg.Webhook.RatePerMinute),
		Recorder: recorder,
		Location: loc,
	}

	transactions := extraction.NewExtractor(opener, watermark.NewMemoryStore(), extraction.WithName(transactionsJob))
	paymentLog := extraction.NewExtractor(opener, watermark.NewMemoryStore(), extraction.WithName(paymentLogJob))

	sched := scheduler.New(loc)
	if err := sched.Register(
		monitor.NewTransactionJob(transactionsJob, transactions, source.TransactionSources(), deps),
		cfg.Schedule.Transactions,
	); err != nil {
		return err
	}
	if err := sched.Register(
		monitor.NewPaymentLogJob(paymentLogJob, paymentLog, source.PaymentLogSource(), deps),
		cfg.Schedule.PaymentLog,
	); err != nil {
		return err
	}
	for _, hb := range cfg.Schedule.Heartbeats {
		job := monitor.NewHeartbeatJob(corecfg.HeartbeatName(hb), hb.Label, cfg.Environment, deps)
		if err := sched.Register(job, hb.Cron); err != nil {
			return err
		}
	}

	// 5. Start services
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(gctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(server.Options{
			Addr:         fmtAddr(cfg.Server.Host, cfg.Server.Port),
			Mode:         cfg.Server.Mode,
			Source:       sourceHealth,
			State:        stateHealth,
			Jobs:         sched,
			History:      history,
			HistoryLimit: cfg.State.HistoryLimit,
		})
		g.Go(func() error {
			return srv.Run(gctx)
		})
	} else {
		slog.Info("HTTP server disabled by config")
	}

	<-gctx.Done()
	slog.Info("Shutting down...")
	return g.Wait()
}

func newLogger(cfg corecfg.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("Failed to close state database", "error", err)
	}
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
