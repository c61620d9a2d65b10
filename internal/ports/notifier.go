package ports

import (
	"context"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// Notifier presenta al usuario los snapshots en vivo y los resultados de los flujos.
type Notifier interface {
	Auction(ctx context.Context, snap domain.AuctionSnapshot) error
	ActiveAuctions(ctx context.Context, list domain.ActiveAuctions) error
	Notifications(ctx context.Context, feed domain.NotificationFeed) error
	Outcome(ctx context.Context, outcome domain.Outcome) error
}
