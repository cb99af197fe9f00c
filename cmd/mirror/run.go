package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polymirror/config"
	"github.com/alejandrodnm/polymirror/internal/adapters/notify"
	"github.com/alejandrodnm/polymirror/internal/adapters/onchain"
	"github.com/alejandrodnm/polymirror/internal/adapters/polymarket"
	"github.com/alejandrodnm/polymirror/internal/adapters/storage"
	"github.com/alejandrodnm/polymirror/internal/application/mirror"
)

// runMirror arranca el bot completo: credenciales, approvals on-chain, feed,
// consumer y scheduler de redenciones. Bloquea hasta señal o error fatal.
func runMirror(ctx context.Context, cfg *config.Config, store *storage.SQLiteLedger, console *notify.Console) error {
	slog.Info("=== MIRROR MODE (REAL MONEY) ===",
		"target", cfg.Wallet.TargetAddress,
		"multiplier", cfg.Mirror.SizeMultiplier,
		"max_order", cfg.Mirror.MaxOrderAmount,
	)

	fmt.Printf("\n⚠️  MIRROR MODE — REAL MONEY WILL BE SPENT\n")
	fmt.Printf("   Copying: %s | Multiplier: %.2fx | Max per order: $%.2f\n",
		cfg.Wallet.TargetAddress, cfg.Mirror.SizeMultiplier, cfg.Mirror.MaxOrderAmount)
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	select {
	case <-abortTimer.C:
	case <-ctx.Done():
		slog.Info("mirror aborted by user")
		return nil
	}

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.Wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("create auth client: %w", err)
	}

	if err := authClient.EnsureCreds(ctx); err != nil {
		return fmt.Errorf("derive API credentials — check POLY_PRIVATE_KEY: %w", err)
	}
	slog.Info("mirror: authenticated with Polymarket CLOB", "address", authClient.Address())

	trading := polymarket.NewTradingClient(authClient)

	chain, err := onchain.DialFirst(ctx, cfg.RPC.Endpoints, cfg.Wallet.PrivateKey)
	if err != nil {
		return fmt.Errorf("connect polygon RPC: %w", err)
	}
	defer chain.Close()

	slog.Info("mirror: checking on-chain approvals...")
	if err := chain.EnsureApproved(ctx); err != nil {
		return fmt.Errorf("ensure on-chain approvals: %w", err)
	}
	slog.Info("mirror: all approvals verified")

	balance, err := trading.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("get CLOB balance: %w", err)
	}
	slog.Info("mirror: CLOB balance", "usdc", fmt.Sprintf("$%.2f", balance))
	if balance <= 0 {
		slog.Warn("mirror: no collateral available on the venue — BUY mirroring will abort until funded")
	}

	if chainBalance, err := chain.USDCBalance(ctx); err != nil {
		slog.Warn("mirror: could not read on-chain USDC.e balance", "err", err)
	} else {
		slog.Info("mirror: wallet USDC.e balance", "usdc", fmt.Sprintf("$%.2f", chainBalance))
	}

	entries, err := store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read holdings ledger: %w", err)
	}
	slog.Info("mirror: holdings ledger loaded", "positions", len(entries))
	if len(entries) > 0 {
		console.PrintHoldings(entries)
	}

	feed := polymarket.NewLiveFeed(cfg.API.WSBase, cfg.Wallet.TargetAddress)

	engine := mirror.New(store, store, trading, chain, feed, chain, mirror.Config{
		Enabled:            cfg.Mirror.Enabled,
		SizeMultiplier:     cfg.Mirror.SizeMultiplier,
		MaxOrderAmount:     cfg.Mirror.MaxOrderAmount,
		OrderType:          cfg.Mirror.OrderType,
		TickSize:           cfg.Mirror.TickSize,
		NegRisk:            cfg.Mirror.NegRisk,
		MaxTradeAge:        cfg.MaxTradeAge(),
		PauseDefer:         cfg.Mirror.PauseBehavior == "defer",
		RedemptionInterval: cfg.RedemptionInterval(),
	})

	errCh := make(chan error, 3)
	go func() { errCh <- feed.Run(ctx) }()
	go func() { errCh <- engine.Run(ctx) }()
	if cfg.RedemptionInterval() > 0 {
		go func() { errCh <- engine.RunRedemptions(ctx) }()
	}

	slog.Info("mirror: running — press Ctrl+C to exit")

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
