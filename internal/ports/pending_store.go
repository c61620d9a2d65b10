package ports

import (
	"context"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// PendingBidStore guarda como mucho una PendingBid por subasta.
type PendingBidStore interface {
	// Create falla con domain.ErrPendingBidExists si ya hay una para la subasta.
	Create(ctx context.Context, bid domain.PendingBid) error

	// Attach asocia la sesión de depósito a la PendingBid de la subasta.
	Attach(ctx context.Context, auctionID int64, sessionID string) error

	Get(ctx context.Context, auctionID int64) (domain.PendingBid, bool, error)

	// Take consume la PendingBid de forma atómica, solo si la sesión coincide.
	// Dos llamadas concurrentes nunca devuelven ok=true ambas.
	Take(ctx context.Context, auctionID int64, sessionID string) (domain.PendingBid, bool, error)

	// Discard elimina la PendingBid si su sesión coincide. sessionID vacío
	// solo elimina una PendingBid que todavía no tiene sesión.
	Discard(ctx context.Context, auctionID int64, sessionID string) error

	List(ctx context.Context) ([]domain.PendingBid, error)
}
