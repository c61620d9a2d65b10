package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus is owned by the payment gateway; the client only observes it.
type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositCompleted DepositStatus = "completed"
	DepositFailed    DepositStatus = "failed"
)

// Terminal reports whether the session has left pending and must stop being polled.
func (s DepositStatus) Terminal() bool {
	return s == DepositCompleted || s == DepositFailed
}

// PaymentInstruction is what the user needs to pay the deposit outside the client.
type PaymentInstruction struct {
	QRURL string
	Token string
}

// DepositSession is a gateway-issued, pollable payment request gating participation.
type DepositSession struct {
	ID          string
	AuctionID   int64
	Amount      decimal.Decimal
	Instruction PaymentInstruction
	Status      DepositStatus
	ExpiresAt   string
}

// PendingBid is the declared intent to bid once the gating deposit completes.
// At most one exists per auction; SessionID is empty until registration returns.
type PendingBid struct {
	AuctionID int64
	Amount    decimal.Decimal
	SessionID string
	CreatedAt time.Time
}

// Matches reports whether the pending bid belongs to the given deposit session.
func (p PendingBid) Matches(sessionID string) bool {
	return sessionID != "" && p.SessionID == sessionID
}
