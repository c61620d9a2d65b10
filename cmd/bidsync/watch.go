package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/sourcegraph/conc"

	"github.com/alejandrodnm/bidsync/config"
	"github.com/alejandrodnm/bidsync/internal/adapters/notify"
	"github.com/alejandrodnm/bidsync/internal/application/livesync"
	"github.com/alejandrodnm/bidsync/internal/domain"
)

func runWatch(ctx context.Context, cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	auctionID := fs.Int64("auction", 0, "auction id to follow (0 = none)")
	active := fs.Bool("active", true, "follow the active auctions list (sse only)")
	notifications := fs.Bool("notifications", false, "follow the user's notifications (needs a token)")
	table := fs.Bool("table", false, "print full tables (default: compact 1-line)")
	_ = fs.Parse(args)

	if *active && cfg.API.Transport == "ws" {
		slog.Warn("active auctions list is only available over sse, skipping")
		*active = false
	}
	if *auctionID == 0 && !*active && !*notifications {
		slog.Error("nothing to watch: pass -auction, -active or -notifications")
		return 2
	}

	notifier := notify.NewConsole(*table)
	mgr := livesync.NewManager(newDialer(cfg), liveConfig(cfg))
	defer mgr.CloseAll()

	// Cada Subscribe espera su primer dial; se abren en paralelo.
	var wg conc.WaitGroup
	if *auctionID > 0 {
		wg.Go(func() {
			_, err := mgr.SubscribeAuction(ctx, *auctionID, func(s domain.AuctionSnapshot) {
				if err := notifier.Auction(ctx, s); err != nil {
					slog.Warn("notifier error", "err", err)
				}
			})
			if err != nil {
				slog.Error("subscribe auction failed", "auction_id", *auctionID, "err", err)
			}
		})
	}
	if *active {
		wg.Go(func() {
			_, err := mgr.SubscribeActiveAuctions(ctx, func(list domain.ActiveAuctions) {
				if err := notifier.ActiveAuctions(ctx, list); err != nil {
					slog.Warn("notifier error", "err", err)
				}
			})
			if err != nil {
				slog.Error("subscribe active auctions failed", "err", err)
			}
		})
	}
	if *notifications {
		wg.Go(func() {
			_, err := mgr.SubscribeNotifications(ctx, cfg.API.UserID, func(feed domain.NotificationFeed) {
				if err := notifier.Notifications(ctx, feed); err != nil {
					slog.Warn("notifier error", "err", err)
				}
			})
			if err != nil {
				slog.Error("subscribe notifications failed", "err", err)
			}
		})
	}
	wg.Wait()

	if mgr.Active() == 0 {
		slog.Error("no subscription could be opened")
		return 1
	}
	slog.Info("watching", "subscriptions", mgr.Active())

	<-ctx.Done()
	slog.Info("bidsync stopped cleanly")
	return 0
}
