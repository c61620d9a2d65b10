package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyRegistered: el backend ya tiene un depósito para este usuario y subasta.
	ErrAlreadyRegistered = errors.New("already registered for auction")
	// ErrValidationFailed: la puja no cumple el mínimo vigente.
	ErrValidationFailed = errors.New("bid validation failed")
	// ErrOutbid: otra puja más alta llegó antes que la nuestra.
	ErrOutbid = errors.New("outbid or stale bid")
	// ErrNotRegistered: el usuario no tiene depósito completado para la subasta.
	ErrNotRegistered = errors.New("not registered for auction")
	// ErrAuctionNotFound: la subasta no existe.
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrDepositFailed: el gateway marcó la sesión de depósito como fallida.
	ErrDepositFailed = errors.New("deposit payment failed")

	ErrPendingBidExists   = errors.New("pending bid already exists for auction")
	ErrPendingBidNotFound = errors.New("pending bid not found")
)

// ValidationError restates the minimum acceptable bid at validation time.
type ValidationError struct {
	AuctionID int64
	Minimum   decimal.Decimal
	Offered   decimal.Decimal
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bid %s for auction %d is below current minimum %s",
		e.Offered.String(), e.AuctionID, e.Minimum.String())
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
