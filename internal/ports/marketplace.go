package ports

import (
	"context"

	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/shopspring/decimal"
)

// AuctionReader obtiene el detalle de una subasta.
type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID int64) (domain.Auction, error)
}

// Participation registra al usuario en una subasta mediante depósito.
type Participation interface {
	// Register crea la sesión de depósito. Falla con domain.ErrAlreadyRegistered
	// si el backend ya tiene un registro previo.
	Register(ctx context.Context, auctionID int64, deposit decimal.Decimal) (domain.DepositSession, error)

	// RegistrationStatus indica si el usuario ya está registrado.
	RegistrationStatus(ctx context.Context, auctionID int64) (bool, error)
}

// PaymentGateway consulta el estado de una sesión de depósito. Lectura idempotente.
type PaymentGateway interface {
	DepositStatus(ctx context.Context, sessionID string) (domain.DepositStatus, error)
}

// BidPlacer envía pujas. Falla con domain.ErrOutbid, domain.ErrValidationFailed
// o domain.ErrNotRegistered según el motivo de rechazo.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID int64, amount decimal.Decimal) (domain.PlacedBid, error)
}
