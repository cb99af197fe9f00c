package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polymirror/config"
	"github.com/alejandrodnm/polymirror/internal/adapters/notify"
	"github.com/alejandrodnm/polymirror/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	holdings := flag.Bool("holdings", false, "print tracked holdings and exit")
	history := flag.Bool("history", false, "print mirror and redemption history and exit")
	clearHoldings := flag.Bool("clear-holdings", false, "wipe the holdings ledger and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open holdings ledger", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Los reportes no necesitan credenciales: salen antes de Validate.
	console := notify.NewConsole()
	switch {
	case *holdings:
		runHoldingsReport(ctx, store, console)
		return
	case *history:
		runHistoryReport(ctx, store, console)
		return
	case *clearHoldings:
		runClearHoldings(ctx, store)
		return
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("polymirror starting",
		"config", *configPath,
		"target", cfg.Wallet.TargetAddress,
		"multiplier", cfg.Mirror.SizeMultiplier,
		"max_order", cfg.Mirror.MaxOrderAmount,
		"order_type", cfg.Mirror.OrderType,
		"redemption_interval", cfg.RedemptionInterval(),
	)

	if err := runMirror(ctx, cfg, store, console); err != nil {
		slog.Error("mirror exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("polymirror stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
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
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
