package marketplace_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/bidsync/internal/adapters/marketplace"
	"github.com/alejandrodnm/bidsync/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *marketplace.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return marketplace.NewClient(srv.URL, "tok")
}

func TestGetAuction_Success(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auctions/42", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"auction": {"auctionID": 42, "auctionName": "Lot 42", "priceStep": 50,
			            "auctionStatus": "ONGOING", "startDate": "2026-10-01T10:00:00",
			            "endDate": "2026-10-20T10:00:00"},
			"highestBid": {"bidID": 9, "bidPrice": 500},
			"totalBids": 3
		}`)
	})

	a, err := client.GetAuction(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), a.ID)
	assert.Equal(t, domain.AuctionOngoing, a.Status)
	assert.Equal(t, 3, a.TotalBids)
	assert.True(t, a.MinimumBid().Equal(decimal.NewFromInt(550)))
	assert.Equal(t, 2026, a.EndDate.Year())
}

func TestGetAuction_NoBids(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"auction": {"auctionID": 7, "priceStep": 25}, "highestBid": null, "totalBids": 0}`)
	})

	a, err := client.GetAuction(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, a.MinimumBid().Equal(decimal.NewFromInt(25)))
}

func TestGetAuction_NotFound(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Auction not found"}`)
	})

	_, err := client.GetAuction(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestGetAuction_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"auction": {"auctionID": 42, "priceStep": 50}, "totalBids": 0}`)
	})

	_, err := client.GetAuction(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRegister_Success(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/participation/register", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 42, body["auction_id"])
		assert.EqualValues(t, 500, body["amount"], "amount viaja como número")

		io.WriteString(w, `{"success": true, "data": {
			"payment_id": 17, "auction_id": 42, "deposit_amount_raw": 500,
			"payment_status": "pending", "qr_url": "https://pay/qr/abc",
			"token": "abc", "expires_at": "15/10/2026 10:00"}}`)
	})

	s, err := client.Register(context.Background(), 42, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "17", s.ID)
	assert.Equal(t, domain.DepositPending, s.Status)
	assert.Equal(t, "https://pay/qr/abc", s.Instruction.QRURL)
	assert.True(t, s.Amount.Equal(decimal.NewFromInt(500)))
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail": "You have already registered for this auction"}`)
	})

	_, err := client.Register(context.Background(), 42, decimal.NewFromInt(500))
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
}

func TestRegister_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Register(context.Background(), 42, decimal.NewFromInt(500))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "POST no idempotente")
}

func TestRegistrationStatus(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/participation/auction/42/status", r.URL.Path)
		io.WriteString(w, `{"success": true, "is_registered": true, "total_bids": 2}`)
	})

	ok, err := client.RegistrationStatus(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDepositStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		want    domain.DepositStatus
		wantErr bool
	}{
		{"pending", "pending", domain.DepositPending, false},
		{"completed", "completed", domain.DepositCompleted, false},
		{"failed", "failed", domain.DepositFailed, false},
		{"unknown", "refunded", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/payments/17/status", r.URL.Path)
				io.WriteString(w, `{"success": true, "data": {"payment_id": 17, "payment_status": "`+tt.status+`"}}`)
			})

			got, err := client.DepositStatus(context.Background(), "17")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlaceBid_Success(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bids/place", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 42, body["auctionID"])
		assert.EqualValues(t, 600, body["bidPrice"])

		io.WriteString(w, `{"success": true, "data": {"bid_id": 99, "auction_id": 42, "bid_price_raw": 600, "bid_status": "ACTIVE"}}`)
	})

	bid, err := client.PlaceBid(context.Background(), 42, decimal.NewFromInt(600))
	require.NoError(t, err)
	assert.Equal(t, int64(99), bid.ID)
	assert.Equal(t, "ACTIVE", bid.Status)
	assert.True(t, bid.Amount.Equal(decimal.NewFromInt(600)))
}

func TestPlaceBid_ErrorMapping(t *testing.T) {
	tests := []struct {
		detail string
		want   error
	}{
		{"Bid must be at least 650 VND", domain.ErrOutbid},
		{"You must register and pay the deposit before placing bids", domain.ErrNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"detail": tt.detail})
			})

			_, err := client.PlaceBid(context.Background(), 42, decimal.NewFromInt(600))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlaceBid_MinimumRestatedAsValidationError(t *testing.T) {
	tests := []struct {
		detail  string
		minimum int64
	}{
		{"Bid must be at least 650 VND", 650},
		{"Bid must be at least 1,500,000 ₫", 1500000},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"detail": tt.detail})
			})

			_, err := client.PlaceBid(context.Background(), 42, decimal.NewFromInt(600))
			assert.ErrorIs(t, err, domain.ErrOutbid)
			assert.ErrorIs(t, err, domain.ErrValidationFailed)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Minimum.Equal(decimal.NewFromInt(tt.minimum)), "minimum %s", verr.Minimum)
			assert.True(t, verr.Offered.Equal(decimal.NewFromInt(600)))
		})
	}
}

func TestPlaceBid_UnparseableMinimumStaysOutbid(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Bid must be at least the current price"})
	})

	_, err := client.PlaceBid(context.Background(), 42, decimal.NewFromInt(600))
	assert.ErrorIs(t, err, domain.ErrOutbid)
	assert.NotErrorIs(t, err, domain.ErrValidationFailed)
}

func TestPlaceBid_UnmappedClientError(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error": "Validation Error", "detail": [{"loc": ["body", "bidPrice"]}]}`)
	})

	_, err := client.PlaceBid(context.Background(), 42, decimal.RequireFromString("600.5"))
	var apiErr *marketplace.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Detail, "bidPrice")
}
