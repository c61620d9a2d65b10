package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/bidsync/config"
	"github.com/alejandrodnm/bidsync/internal/adapters/marketplace"
	"github.com/alejandrodnm/bidsync/internal/adapters/notify"
	"github.com/alejandrodnm/bidsync/internal/adapters/storage"
	"github.com/alejandrodnm/bidsync/internal/application/autobid"
	"github.com/alejandrodnm/bidsync/internal/domain"
)

// app agrupa las dependencias de los comandos que registran o pujan.
type app struct {
	store    *storage.SQLiteStorage
	notifier *notify.Console
	orch     *autobid.Orchestrator
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}
	client := marketplace.NewClient(cfg.API.BaseURL, cfg.API.Token)
	notifier := notify.NewConsole(false)
	orch := autobid.New(client, client, client, client, store,
		autobid.Config{PollInterval: cfg.PollInterval()},
		autobid.WithNotifier(notifier),
	)
	return &app{store: store, notifier: notifier, orch: orch}, nil
}

func (a *app) close() {
	a.orch.Close()
	if err := a.store.Close(); err != nil {
		slog.Warn("close storage", "err", err)
	}
}

func runBid(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("bid", flag.ExitOnError)
	auctionID := fs.Int64("auction", 0, "auction id")
	depositStr := fs.String("deposit", "", "deposit amount")
	amountStr := fs.String("amount", "", "bid amount placed once the deposit is paid")
	_ = fs.Parse(args)

	deposit, err1 := decimal.NewFromString(*depositStr)
	amount, err2 := decimal.NewFromString(*amountStr)
	if *auctionID <= 0 || err1 != nil || err2 != nil {
		slog.Error("bid needs -auction, -deposit and -amount", "deposit_err", err1, "amount_err", err2)
		return 2
	}

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		return 1
	}
	defer a.close()

	resumed, err := a.orch.Resume(ctx)
	if err != nil {
		slog.Warn("resume failed", "err", err)
	} else if len(resumed) > 0 {
		slog.Info("resumed pending deposit watchers", "count", len(resumed))
	}

	flow, err := a.orch.RegisterAndBid(ctx, *auctionID, deposit, amount)
	if err != nil {
		var (
			verr *domain.ValidationError
			serr *autobid.SessionError
		)
		switch {
		case errors.As(err, &serr):
			slog.Error("deposit session issued but not watched, pay it to stay registered", "auction_id", *auctionID, "err", serr.Err)
			a.notifier.PrintDepositSession(serr.Session)
		case errors.As(err, &verr):
			slog.Error("bid below current minimum", "auction_id", *auctionID, "minimum", verr.Minimum.String(), "offered", amount.String())
		case errors.Is(err, domain.ErrPendingBidExists):
			slog.Error("a bid is already waiting for a deposit on this auction", "auction_id", *auctionID)
		default:
			slog.Error("register and bid failed", "auction_id", *auctionID, "err", err)
		}
		return 1
	}
	return a.await(ctx, flow)
}

func runRegister(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	auctionID := fs.Int64("auction", 0, "auction id")
	depositStr := fs.String("deposit", "", "deposit amount")
	_ = fs.Parse(args)

	deposit, err := decimal.NewFromString(*depositStr)
	if *auctionID <= 0 || err != nil {
		slog.Error("register needs -auction and -deposit", "err", err)
		return 2
	}

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		return 1
	}
	defer a.close()

	flow, err := a.orch.Register(ctx, *auctionID, deposit)
	if err != nil {
		slog.Error("register failed", "auction_id", *auctionID, "err", err)
		return 1
	}
	return a.await(ctx, flow)
}

// await espera el Outcome del flujo; Ctrl+C lo abandona.
func (a *app) await(ctx context.Context, flow *autobid.Flow) int {
	if flow.Session != nil {
		a.notifier.PrintDepositSession(*flow.Session)
	}

	select {
	case <-flow.Done():
	case <-ctx.Done():
		slog.Info("interrupted, abandoning deposit flow", "flow", flow.ID, "auction_id", flow.AuctionID)
		flow.Abandon()
		<-flow.Done()
	}

	out, _ := flow.Outcome()
	switch out.Kind {
	case domain.OutcomeBidPlaced, domain.OutcomeRegistrationComplete:
		return 0
	case domain.OutcomeAbandoned:
		return 130
	default:
		return 1
	}
}

func runPending(ctx context.Context, cfg *config.Config) int {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		return 1
	}
	defer store.Close()

	bids, err := store.List(ctx)
	if err != nil {
		slog.Error("list pending bids", "err", err)
		return 1
	}
	notify.NewConsole(true).PrintPendingBids(bids)
	return 0
}
