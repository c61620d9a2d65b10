package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// MemoryStorage implementa ports.PendingBidStore en memoria. Las PendingBids
// no sobreviven al proceso.
type MemoryStorage struct {
	mu   sync.Mutex
	bids map[int64]domain.PendingBid
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{bids: make(map[int64]domain.PendingBid)}
}

func (m *MemoryStorage) Create(_ context.Context, bid domain.PendingBid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bids[bid.AuctionID]; ok {
		return fmt.Errorf("storage.Create: auction %d: %w", bid.AuctionID, domain.ErrPendingBidExists)
	}
	m.bids[bid.AuctionID] = bid
	return nil
}

func (m *MemoryStorage) Attach(_ context.Context, auctionID int64, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("storage.Attach: empty session id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pb, ok := m.bids[auctionID]
	if !ok || pb.SessionID != "" {
		return fmt.Errorf("storage.Attach: auction %d: %w", auctionID, domain.ErrPendingBidNotFound)
	}
	pb.SessionID = sessionID
	m.bids[auctionID] = pb
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, auctionID int64) (domain.PendingBid, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pb, ok := m.bids[auctionID]
	return pb, ok, nil
}

func (m *MemoryStorage) Take(_ context.Context, auctionID int64, sessionID string) (domain.PendingBid, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pb, ok := m.bids[auctionID]
	if !ok || !pb.Matches(sessionID) {
		return domain.PendingBid{}, false, nil
	}
	delete(m.bids, auctionID)
	return pb, true, nil
}

func (m *MemoryStorage) Discard(_ context.Context, auctionID int64, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pb, ok := m.bids[auctionID]; ok && pb.SessionID == sessionID {
		delete(m.bids, auctionID)
	}
	return nil
}

func (m *MemoryStorage) List(_ context.Context) ([]domain.PendingBid, error) {
	m.mu.Lock()
	out := make([]domain.PendingBid, 0, len(m.bids))
	for _, pb := range m.bids {
		out = append(out, pb)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
