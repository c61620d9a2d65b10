package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OutcomeKind discriminates how a deposit-gated flow ended.
type OutcomeKind string

const (
	OutcomeBidPlaced            OutcomeKind = "bid_placed"
	OutcomeRegistrationComplete OutcomeKind = "registration_complete"
	OutcomeBidRejected          OutcomeKind = "bid_rejected"   // deposit ok, bid failed; registration kept
	OutcomePaymentFailed        OutcomeKind = "payment_failed" // terminal, pending bid discarded
	OutcomeAbandoned            OutcomeKind = "abandoned"
)

// Outcome is the result the caller must branch on. Err is set only for
// OutcomeBidRejected and OutcomePaymentFailed.
type Outcome struct {
	Kind      OutcomeKind
	AuctionID int64
	SessionID string
	Amount    decimal.Decimal
	Bid       *PlacedBid
	Err       error
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeBidPlaced:
		return fmt.Sprintf("bid %s placed on auction %d", o.Amount.String(), o.AuctionID)
	case OutcomeBidRejected:
		return fmt.Sprintf("deposit confirmed but bid on auction %d rejected: %v", o.AuctionID, o.Err)
	case OutcomePaymentFailed:
		return fmt.Sprintf("deposit %s for auction %d failed", o.SessionID, o.AuctionID)
	case OutcomeAbandoned:
		return fmt.Sprintf("deposit flow for auction %d abandoned", o.AuctionID)
	default:
		return fmt.Sprintf("registration for auction %d complete", o.AuctionID)
	}
}
