package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus es el estado de una subasta tal como lo reporta el backend.
type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "SCHEDULED"
	AuctionOngoing   AuctionStatus = "ONGOING"
	AuctionCompleted AuctionStatus = "COMPLETED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// Auction es el detalle REST de una subasta, usado para validar pujas.
type Auction struct {
	ID         int64
	Name       string
	Status     AuctionStatus
	PriceStep  decimal.Decimal
	HighestBid decimal.Decimal // cero si no hay pujas
	TotalBids  int
	StartDate  time.Time
	EndDate    time.Time
}

// MinimumBid es la menor puja aceptable ahora mismo: puja más alta + price step,
// o el price step a secas cuando aún no hay pujas.
func (a Auction) MinimumBid() decimal.Decimal {
	if a.HighestBid.IsPositive() {
		return a.HighestBid.Add(a.PriceStep)
	}
	return a.PriceStep
}

// HighestBidder es el postor que lidera una subasta.
type HighestBidder struct {
	Username string
	BidTime  string // texto relativo ("2 minutes ago") tal como llega del servidor
}

// AuctionSnapshot es el estado completo de una subasta empujado por el servidor.
// No es un delta: cada snapshot reemplaza al anterior.
type AuctionSnapshot struct {
	AuctionID     int64
	Name          string
	Status        AuctionStatus
	CurrentPrice  decimal.Decimal
	PriceStep     string
	TotalBids     int
	HasBids       bool
	IsActive      bool
	TimeRemaining string
	EndDate       string
	HighestBidder *HighestBidder
}

// AuctionSummary es una fila de la lista de subastas activas.
type AuctionSummary struct {
	AuctionID     int64
	Name          string
	ProductName   string
	CurrentPrice  decimal.Decimal
	TotalBids     int
	TimeRemaining string
}

// ActiveAuctions es el snapshot completo de la lista de subastas activas.
type ActiveAuctions struct {
	Auctions    []AuctionSummary
	TotalActive int
	Timestamp   time.Time
}

// PlacedBid es una puja aceptada por el backend.
type PlacedBid struct {
	ID        int64
	AuctionID int64
	Amount    decimal.Decimal
	Status    string
	CreatedAt time.Time
}
