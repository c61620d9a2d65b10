package livesync

// feeds.go — decodificadores de los tres tipos de topic.
//
// Cada payload es un snapshot completo. Un payload que no tenga la forma
// esperada se considera malformado: la Subscription lo descarta y sigue.

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// Nombres de evento que emite el backend (SSE y WebSocket).
const (
	EventAuctionUpdate  = "auction_update"
	EventAuctionState   = "auction_state"
	EventAuctionsUpdate = "auctions_update"
	EventMessage        = "message"
	EventNotifications  = "notifications"
)

type auctionPayload struct {
	AuctionID       int64            `json:"auction_id"`
	AuctionName     string           `json:"auction_name"`
	AuctionStatus   string           `json:"auction_status"`
	CurrentPriceRaw *decimal.Decimal `json:"current_price_raw"`
	PriceStep       string           `json:"price_step"`
	TotalBids       int              `json:"total_bids"`
	HasBids         bool             `json:"has_bids"`
	IsActive        bool             `json:"is_active"`
	TimeRemaining   string           `json:"time_remaining"`
	EndDate         string           `json:"end_date"`
	HighestBidder   *struct {
		Username string `json:"username"`
		BidTime  string `json:"bid_time"`
	} `json:"highest_bidder"`
}

// AuctionFeed decodifica snapshots de una subasta. Un snapshot de otra subasta
// se trata como malformado.
func AuctionFeed(auctionID int64) Feed[domain.AuctionSnapshot] {
	return Feed[domain.AuctionSnapshot]{
		Events: []string{EventAuctionUpdate, EventAuctionState},
		Decode: func(data []byte) (domain.AuctionSnapshot, error) {
			var p auctionPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return domain.AuctionSnapshot{}, fmt.Errorf("decode auction snapshot: %w", err)
			}
			if p.AuctionID != auctionID {
				return domain.AuctionSnapshot{}, fmt.Errorf("snapshot for auction %d, want %d", p.AuctionID, auctionID)
			}
			if p.CurrentPriceRaw == nil {
				return domain.AuctionSnapshot{}, errors.New("snapshot without current_price_raw")
			}
			snap := domain.AuctionSnapshot{
				AuctionID:     p.AuctionID,
				Name:          p.AuctionName,
				Status:        domain.AuctionStatus(p.AuctionStatus),
				CurrentPrice:  *p.CurrentPriceRaw,
				PriceStep:     p.PriceStep,
				TotalBids:     p.TotalBids,
				HasBids:       p.HasBids,
				IsActive:      p.IsActive,
				TimeRemaining: p.TimeRemaining,
				EndDate:       p.EndDate,
			}
			if p.HighestBidder != nil {
				snap.HighestBidder = &domain.HighestBidder{
					Username: p.HighestBidder.Username,
					BidTime:  p.HighestBidder.BidTime,
				}
			}
			return snap, nil
		},
	}
}

type activeAuctionsPayload struct {
	Auctions *[]struct {
		AuctionID       int64           `json:"auction_id"`
		AuctionName     string          `json:"auction_name"`
		ProductName     *string         `json:"product_name"`
		CurrentPriceRaw decimal.Decimal `json:"current_price_raw"`
		TotalBids       int             `json:"total_bids"`
		TimeRemaining   string          `json:"time_remaining"`
	} `json:"auctions"`
	TotalActive int    `json:"total_active"`
	Timestamp   string `json:"timestamp"`
}

// ActiveAuctionsFeed decodifica la lista completa de subastas activas.
func ActiveAuctionsFeed() Feed[domain.ActiveAuctions] {
	return Feed[domain.ActiveAuctions]{
		Events: []string{EventAuctionsUpdate},
		Decode: func(data []byte) (domain.ActiveAuctions, error) {
			var p activeAuctionsPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return domain.ActiveAuctions{}, fmt.Errorf("decode active auctions: %w", err)
			}
			if p.Auctions == nil {
				return domain.ActiveAuctions{}, errors.New("active auctions payload without auctions")
			}
			list := domain.ActiveAuctions{
				Auctions:    make([]domain.AuctionSummary, 0, len(*p.Auctions)),
				TotalActive: p.TotalActive,
				Timestamp:   parseServerTime(p.Timestamp),
			}
			for _, a := range *p.Auctions {
				s := domain.AuctionSummary{
					AuctionID:     a.AuctionID,
					Name:          a.AuctionName,
					CurrentPrice:  a.CurrentPriceRaw,
					TotalBids:     a.TotalBids,
					TimeRemaining: a.TimeRemaining,
				}
				if a.ProductName != nil {
					s.ProductName = *a.ProductName
				}
				list.Auctions = append(list.Auctions, s)
			}
			return list, nil
		},
	}
}

type notificationPayload struct {
	NotificationID int64   `json:"notification_id"`
	Title          string  `json:"title"`
	Message        string  `json:"message"`
	Type           string  `json:"type"`
	IsRead         bool    `json:"is_read"`
	AuctionID      *int64  `json:"auction_id"`
	AuctionName    *string `json:"auction_name"`
	TimeAgo        string  `json:"time_ago"`
	CreatedAt      string  `json:"created_at"`
}

// NotificationsFeed decodifica el feed de notificaciones: siempre un array JSON.
func NotificationsFeed() Feed[domain.NotificationFeed] {
	return Feed[domain.NotificationFeed]{
		Events: []string{EventMessage, EventNotifications},
		Decode: func(data []byte) (domain.NotificationFeed, error) {
			trimmed := bytes.TrimSpace(data)
			if len(trimmed) == 0 || trimmed[0] != '[' {
				return domain.NotificationFeed{}, errors.New("notification feed is not a JSON array")
			}
			var items []notificationPayload
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return domain.NotificationFeed{}, fmt.Errorf("decode notifications: %w", err)
			}
			feed := domain.NotificationFeed{Items: make([]domain.Notification, 0, len(items))}
			for _, it := range items {
				n := domain.Notification{
					ID:        it.NotificationID,
					Title:     it.Title,
					Message:   it.Message,
					Type:      it.Type,
					Read:      it.IsRead,
					TimeAgo:   it.TimeAgo,
					CreatedAt: it.CreatedAt,
				}
				if it.AuctionID != nil {
					n.AuctionID = *it.AuctionID
				}
				if it.AuctionName != nil {
					n.AuctionName = *it.AuctionName
				}
				feed.Items = append(feed.Items, n)
			}
			return feed, nil
		},
	}
}

// parseServerTime acepta RFC3339 o el isoformat sin zona que emite el backend (UTC).
func parseServerTime(s string) time.Time {
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
