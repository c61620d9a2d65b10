package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// GetAuction obtiene el detalle de una subasta con su puja más alta.
func (c *Client) GetAuction(ctx context.Context, auctionID int64) (domain.Auction, error) {
	var resp auctionDetailResponse
	if err := c.get(ctx, fmt.Sprintf("/auctions/%d", auctionID), &resp); err != nil {
		return domain.Auction{}, fmt.Errorf("marketplace.GetAuction %d: %w", auctionID, err)
	}

	a := domain.Auction{
		ID:        resp.Auction.AuctionID,
		Name:      resp.Auction.AuctionName,
		Status:    domain.AuctionStatus(resp.Auction.AuctionStatus),
		PriceStep: resp.Auction.PriceStep,
		TotalBids: resp.TotalBids,
		StartDate: parseTime(resp.Auction.StartDate),
		EndDate:   parseTime(resp.Auction.EndDate),
	}
	if resp.HighestBid != nil {
		a.HighestBid = resp.HighestBid.BidPrice
	}
	return a, nil
}

// Register crea el registro con depósito. El id del pago es la sesión de depósito.
func (c *Client) Register(ctx context.Context, auctionID int64, deposit decimal.Decimal) (domain.DepositSession, error) {
	var resp registerResponse
	body := registerRequest{AuctionID: auctionID, Amount: number(deposit)}
	if err := c.post(ctx, "/participation/register", body, &resp); err != nil {
		return domain.DepositSession{}, fmt.Errorf("marketplace.Register %d: %w", auctionID, err)
	}

	d := resp.Data
	status := domain.DepositStatus(d.PaymentStatus)
	if status == "" {
		status = domain.DepositPending
	}
	amount := d.DepositAmountRaw
	if amount.IsZero() {
		amount = deposit
	}
	return domain.DepositSession{
		ID:          strconv.FormatInt(d.PaymentID, 10),
		AuctionID:   auctionID,
		Amount:      amount,
		Instruction: domain.PaymentInstruction{QRURL: d.QRURL, Token: d.Token},
		Status:      status,
		ExpiresAt:   d.ExpiresAt,
	}, nil
}

// RegistrationStatus indica si el backend considera al usuario registrado.
func (c *Client) RegistrationStatus(ctx context.Context, auctionID int64) (bool, error) {
	var resp registrationStatusResponse
	if err := c.get(ctx, fmt.Sprintf("/participation/auction/%d/status", auctionID), &resp); err != nil {
		return false, fmt.Errorf("marketplace.RegistrationStatus %d: %w", auctionID, err)
	}
	return resp.IsRegistered, nil
}

// DepositStatus consulta el estado del pago del depósito. Lectura idempotente.
func (c *Client) DepositStatus(ctx context.Context, sessionID string) (domain.DepositStatus, error) {
	var resp paymentStatusResponse
	if err := c.get(ctx, "/payments/"+sessionID+"/status", &resp); err != nil {
		return "", fmt.Errorf("marketplace.DepositStatus %s: %w", sessionID, err)
	}

	switch st := domain.DepositStatus(resp.Data.PaymentStatus); st {
	case domain.DepositPending, domain.DepositCompleted, domain.DepositFailed:
		return st, nil
	default:
		return "", fmt.Errorf("marketplace.DepositStatus %s: unknown status %q", sessionID, resp.Data.PaymentStatus)
	}
}

// PlaceBid envía una puja. Nunca se reintenta.
func (c *Client) PlaceBid(ctx context.Context, auctionID int64, amount decimal.Decimal) (domain.PlacedBid, error) {
	var resp placeBidResponse
	body := placeBidRequest{AuctionID: auctionID, BidPrice: number(amount)}
	if err := c.post(ctx, "/bids/place", body, &resp); err != nil {
		var low *minimumBidError
		if errors.As(err, &low) && low.minimum.IsPositive() {
			// El mínimo vigente viaja en el detail; se devuelve también como ValidationError.
			verr := &domain.ValidationError{AuctionID: auctionID, Minimum: low.minimum, Offered: amount}
			return domain.PlacedBid{}, fmt.Errorf("marketplace.PlaceBid %d: %w: %w", auctionID, domain.ErrOutbid, verr)
		}
		return domain.PlacedBid{}, fmt.Errorf("marketplace.PlaceBid %d: %w", auctionID, err)
	}

	d := resp.Data
	placed := d.BidPriceRaw
	if placed.IsZero() {
		placed = amount
	}
	return domain.PlacedBid{
		ID:        d.BidID,
		AuctionID: auctionID,
		Amount:    placed,
		Status:    d.BidStatus,
		CreatedAt: time.Now().UTC(),
	}, nil
}
