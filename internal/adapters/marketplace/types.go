package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// auctionDetailResponse es la respuesta de GET /auctions/{id} (sin envoltorio `data`).
type auctionDetailResponse struct {
	Auction struct {
		AuctionID     int64           `json:"auctionID"`
		AuctionName   string          `json:"auctionName"`
		StartDate     string          `json:"startDate"`
		EndDate       string          `json:"endDate"`
		PriceStep     decimal.Decimal `json:"priceStep"`
		AuctionStatus string          `json:"auctionStatus"`
	} `json:"auction"`
	HighestBid *struct {
		BidPrice decimal.Decimal `json:"bidPrice"`
	} `json:"highestBid"`
	TotalBids int `json:"totalBids"`
}

type registerRequest struct {
	AuctionID int64  `json:"auction_id"`
	Amount    number `json:"amount"`
}

type registerResponse struct {
	Data struct {
		PaymentID        int64           `json:"payment_id"`
		AuctionID        int64           `json:"auction_id"`
		DepositAmountRaw decimal.Decimal `json:"deposit_amount_raw"`
		PaymentStatus    string          `json:"payment_status"`
		QRURL            string          `json:"qr_url"`
		Token            string          `json:"token"`
		ExpiresAt        string          `json:"expires_at"`
	} `json:"data"`
}

type registrationStatusResponse struct {
	IsRegistered bool `json:"is_registered"`
}

type paymentStatusResponse struct {
	Data struct {
		PaymentID     int64  `json:"payment_id"`
		PaymentStatus string `json:"payment_status"`
	} `json:"data"`
}

type placeBidRequest struct {
	AuctionID int64  `json:"auctionID"`
	BidPrice  number `json:"bidPrice"`
}

type placeBidResponse struct {
	Data struct {
		BidID       int64           `json:"bid_id"`
		AuctionID   int64           `json:"auction_id"`
		BidPriceRaw decimal.Decimal `json:"bid_price_raw"`
		BidStatus   string          `json:"bid_status"`
	} `json:"data"`
}

// number serializa un decimal como número JSON sin comillas (el backend espera int).
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

// parseTime acepta RFC3339 o el isoformat sin zona del backend (UTC).
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999999", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
