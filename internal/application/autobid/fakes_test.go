package autobid_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/bidsync/internal/adapters/storage"
	"github.com/alejandrodnm/bidsync/internal/clock"
	"github.com/alejandrodnm/bidsync/internal/domain"
)

var errTransport = errors.New("connection reset")

type placeCall struct {
	AuctionID int64
	Amount    decimal.Decimal
}

// fakeMarketplace backs every remote port of the orchestrator.
type fakeMarketplace struct {
	clock *clock.Fake

	mu            sync.Mutex
	auction       domain.Auction
	registerErr   error
	registered    bool
	statusErr     error
	registrations int
	statuses      []domain.DepositStatus
	pollErrs      []error
	polls         []time.Time
	placed        []placeCall
	placeErr      error
	placeHook     func()
}

func newFakeMarketplace(clk *clock.Fake) *fakeMarketplace {
	return &fakeMarketplace{
		clock: clk,
		auction: domain.Auction{
			ID:         42,
			Name:       "Lot 42",
			Status:     domain.AuctionOngoing,
			PriceStep:  decimal.NewFromInt(50),
			HighestBid: decimal.NewFromInt(500),
		},
	}
}

func (f *fakeMarketplace) GetAuction(_ context.Context, id int64) (domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.auction.ID {
		return domain.Auction{}, domain.ErrAuctionNotFound
	}
	return f.auction, nil
}

func (f *fakeMarketplace) Register(_ context.Context, id int64, deposit decimal.Decimal) (domain.DepositSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations++
	if f.registerErr != nil {
		return domain.DepositSession{}, f.registerErr
	}
	return domain.DepositSession{
		ID:        "S1",
		AuctionID: id,
		Amount:    deposit,
		Status:    domain.DepositPending,
		Instruction: domain.PaymentInstruction{
			QRURL: "https://pay.example/qr/S1",
			Token: "tok-S1",
		},
	}, nil
}

func (f *fakeMarketplace) RegistrationStatus(context.Context, int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered, f.statusErr
}

// DepositStatus replays the scripted statuses; the last one repeats.
func (f *fakeMarketplace) DepositStatus(context.Context, string) (domain.DepositStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, f.clock.Now())
	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		if err != nil {
			return "", err
		}
	}
	if len(f.statuses) == 0 {
		return domain.DepositPending, nil
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return st, nil
}

func (f *fakeMarketplace) PlaceBid(_ context.Context, id int64, amount decimal.Decimal) (domain.PlacedBid, error) {
	f.mu.Lock()
	hook := f.placeHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, placeCall{AuctionID: id, Amount: amount})
	if f.placeErr != nil {
		return domain.PlacedBid{}, f.placeErr
	}
	return domain.PlacedBid{ID: int64(len(f.placed)), AuctionID: id, Amount: amount, Status: "ACTIVE"}, nil
}

// OnPlace runs hook when a bid submission starts, before it is recorded.
func (f *fakeMarketplace) OnPlace(hook func()) {
	f.mu.Lock()
	f.placeHook = hook
	f.mu.Unlock()
}

func (f *fakeMarketplace) Placed() []placeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]placeCall(nil), f.placed...)
}

func (f *fakeMarketplace) Polls() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.polls...)
}

func (f *fakeMarketplace) Registrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registrations
}

type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (n *recordingNotifier) Auction(context.Context, domain.AuctionSnapshot) error      { return nil }
func (n *recordingNotifier) ActiveAuctions(context.Context, domain.ActiveAuctions) error { return nil }
func (n *recordingNotifier) Notifications(context.Context, domain.NotificationFeed) error {
	return nil
}

func (n *recordingNotifier) Outcome(_ context.Context, out domain.Outcome) error {
	n.mu.Lock()
	n.outcomes = append(n.outcomes, out)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) All() []domain.Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Outcome(nil), n.outcomes...)
}

// hookedStore wraps MemoryStorage to inject failures and interleavings.
type hookedStore struct {
	*storage.MemoryStorage
	attachErr error
	afterTake func()
}

func (s *hookedStore) Attach(ctx context.Context, auctionID int64, sessionID string) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	return s.MemoryStorage.Attach(ctx, auctionID, sessionID)
}

func (s *hookedStore) Take(ctx context.Context, auctionID int64, sessionID string) (domain.PendingBid, bool, error) {
	pb, ok, err := s.MemoryStorage.Take(ctx, auctionID, sessionID)
	if ok && s.afterTake != nil {
		s.afterTake()
	}
	return pb, ok, err
}
