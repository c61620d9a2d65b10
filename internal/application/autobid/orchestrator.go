package autobid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/bidsync/internal/clock"
	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

const (
	DefaultPollInterval = 3 * time.Second
	cleanupTimeout      = 5 * time.Second
	submitTimeout       = 30 * time.Second
)

// SessionError is returned when registration succeeded server-side but the
// flow could not continue. Session still holds the payment instruction.
type SessionError struct {
	Session domain.DepositSession
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("autobid: deposit session %s for auction %d: %v", e.Session.ID, e.Session.AuctionID, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Config holds configuration for the deposit-gated bidding orchestrator.
type Config struct {
	PollInterval time.Duration
}

// Orchestrator sequences registration → deposit session → payment
// confirmation → automatic bid, consuming each PendingBid at most once.
type Orchestrator struct {
	auctions      ports.AuctionReader
	participation ports.Participation
	payments      ports.PaymentGateway
	bids          ports.BidPlacer
	pending       ports.PendingBidStore
	notifier      ports.Notifier
	cfg           Config
	clock         clock.Clock
	log           *slog.Logger

	mu    sync.Mutex
	flows map[string]*Flow // by deposit session id, only while watching
	wg    sync.WaitGroup
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithNotifier surfaces every outcome to n in addition to Flow.Wait.
func WithNotifier(n ports.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// New creates an orchestrator over the remote collaborators.
func New(
	auctions ports.AuctionReader,
	participation ports.Participation,
	payments ports.PaymentGateway,
	bids ports.BidPlacer,
	pending ports.PendingBidStore,
	cfg Config,
	opts ...Option,
) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	o := &Orchestrator{
		auctions:      auctions,
		participation: participation,
		payments:      payments,
		bids:          bids,
		pending:       pending,
		cfg:           cfg,
		clock:         clock.NewSystem(),
		log:           slog.Default(),
		flows:         make(map[string]*Flow),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterAndBid registers for auctionID with the given deposit and declares
// bid to be placed automatically once the deposit is confirmed.
//
// Business failures are typed: *domain.ValidationError (errors.Is
// domain.ErrValidationFailed) when bid is below the current minimum,
// domain.ErrPendingBidExists when another flow for the auction is outstanding,
// domain.ErrAlreadyRegistered when the backend reports a prior registration
// that the registration status cannot confirm.
//
// When the backend reports the user as already registered and the status
// confirms it, the bid is placed directly and the returned Flow is finished.
func (o *Orchestrator) RegisterAndBid(ctx context.Context, auctionID int64, deposit, bid decimal.Decimal) (*Flow, error) {
	if !deposit.IsPositive() || !bid.IsPositive() {
		return nil, fmt.Errorf("autobid.RegisterAndBid: deposit and bid must be positive")
	}

	auction, err := o.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("autobid.RegisterAndBid: get auction %d: %w", auctionID, err)
	}
	if minimum := auction.MinimumBid(); bid.LessThan(minimum) {
		return nil, &domain.ValidationError{AuctionID: auctionID, Minimum: minimum, Offered: bid}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	intent := domain.PendingBid{AuctionID: auctionID, Amount: bid, CreatedAt: o.clock.Now()}
	if err := o.pending.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("autobid.RegisterAndBid: %w", err)
	}

	flow := newFlow(ctx, uuid.NewString(), auctionID)
	flow.Bid = intent
	log := o.log.With("flow", flow.ID, "auction_id", auctionID)

	session, err := o.participation.Register(ctx, auctionID, deposit)
	if err != nil {
		o.discard(auctionID, "")
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			log.Info("already registered, reconciling")
			return o.reconcile(ctx, flow, bid, err)
		}
		return nil, fmt.Errorf("autobid.RegisterAndBid: register: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, o.detached(log, session, err)
	}
	if err := o.pending.Attach(ctx, auctionID, session.ID); err != nil {
		return nil, o.detached(log, session, fmt.Errorf("attach session: %w", err))
	}
	flow.Bid.SessionID = session.ID
	flow.Session = &session

	log.Info("deposit session created, waiting for payment",
		"session_id", session.ID,
		"deposit", session.Amount.String(),
		"bid", bid.String(),
	)
	o.startWatcher(flow)
	return flow, nil
}

// detached drops the PendingBid of a flow that cannot be watched although the
// server already issued its deposit session, and hands the session back.
func (o *Orchestrator) detached(log *slog.Logger, session domain.DepositSession, cause error) error {
	o.discard(session.AuctionID, "")
	log.Error("deposit session created but not watched, no automatic bid will be placed",
		"session_id", session.ID,
		"qr_url", session.Instruction.QRURL,
		"err", cause,
	)
	return &SessionError{Session: session, Err: cause}
}

// Register registers for auctionID with a deposit and no automatic bid.
func (o *Orchestrator) Register(ctx context.Context, auctionID int64, deposit decimal.Decimal) (*Flow, error) {
	if !deposit.IsPositive() {
		return nil, fmt.Errorf("autobid.Register: deposit must be positive")
	}
	flow := newFlow(ctx, uuid.NewString(), auctionID)

	session, err := o.participation.Register(ctx, auctionID, deposit)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return o.reconcile(ctx, flow, decimal.Zero, err)
		}
		return nil, fmt.Errorf("autobid.Register: %w", err)
	}
	flow.Session = &session

	o.log.Info("deposit session created", "flow", flow.ID, "auction_id", auctionID, "session_id", session.ID)
	o.startWatcher(flow)
	return flow, nil
}

// reconcile handles ErrAlreadyRegistered: if the registration status confirms
// it, continue straight to bidding (or finish for deposit-only flows).
func (o *Orchestrator) reconcile(ctx context.Context, flow *Flow, bid decimal.Decimal, cause error) (*Flow, error) {
	registered, err := o.participation.RegistrationStatus(ctx, flow.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("autobid: registration status for auction %d: %w", flow.AuctionID, err)
	}
	if !registered {
		return nil, fmt.Errorf("autobid: auction %d: %w", flow.AuctionID, cause)
	}

	flow.abandon = func() {}
	if bid.IsZero() {
		o.finish(flow, domain.Outcome{Kind: domain.OutcomeRegistrationComplete, AuctionID: flow.AuctionID})
		return flow, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	placed, err := o.bids.PlaceBid(ctx, flow.AuctionID, bid)
	if err != nil {
		// No deposit was paid in this call: a stale amount is a validation failure.
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			flow.abandonCancel()
			return nil, verr
		}
		o.finish(flow, o.rejected(flow, bid, err))
		return flow, nil
	}
	o.finish(flow, domain.Outcome{Kind: domain.OutcomeBidPlaced, AuctionID: flow.AuctionID, Amount: bid, Bid: &placed})
	return flow, nil
}

// ConfirmDeposit delivers a completion signal obtained outside the poller
// (e.g. a payment notification). Duplicate or stale signals are harmless.
func (o *Orchestrator) ConfirmDeposit(sessionID string) bool {
	o.mu.Lock()
	flow, ok := o.flows[sessionID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	o.settle(flow)
	return true
}

// Resume restarts watchers for persisted PendingBids that already have a
// deposit session. PendingBids whose registration never returned a session
// are discarded: there is nothing to confirm against.
func (o *Orchestrator) Resume(ctx context.Context) ([]*Flow, error) {
	intents, err := o.pending.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("autobid.Resume: %w", err)
	}

	var flows []*Flow
	for _, pb := range intents {
		if pb.SessionID == "" {
			o.log.Warn("discarding pending bid without deposit session", "auction_id", pb.AuctionID)
			o.discard(pb.AuctionID, "")
			continue
		}
		o.mu.Lock()
		_, watching := o.flows[pb.SessionID]
		o.mu.Unlock()
		if watching {
			continue
		}

		flow := newFlow(ctx, uuid.NewString(), pb.AuctionID)
		flow.Bid = pb
		flow.Session = &domain.DepositSession{ID: pb.SessionID, AuctionID: pb.AuctionID, Status: domain.DepositPending}
		o.log.Info("resuming deposit watcher", "flow", flow.ID, "auction_id", pb.AuctionID, "session_id", pb.SessionID)
		o.startWatcher(flow)
		flows = append(flows, flow)
	}
	return flows, nil
}

// Close stops every watcher without discarding PendingBids, so Resume can
// pick them up later. Flows stopped this way never finish, except a flow
// that already took its PendingBid: its bid is still submitted and Close
// waits for the outcome.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	for _, f := range o.flows {
		f.cancel()
	}
	o.mu.Unlock()
	o.wg.Wait()
}

// Watching returns how many confirmation watchers are running.
func (o *Orchestrator) Watching() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.flows)
}

func (o *Orchestrator) startWatcher(flow *Flow) {
	sessionID := flow.SessionID()
	flow.abandon = func() { o.abandon(flow) }

	o.mu.Lock()
	o.flows[sessionID] = flow
	o.mu.Unlock()

	o.wg.Add(1)
	go o.watch(flow)
}

func (o *Orchestrator) untrack(flow *Flow) {
	o.mu.Lock()
	if o.flows[flow.SessionID()] == flow {
		delete(o.flows, flow.SessionID())
	}
	o.mu.Unlock()
}

func (o *Orchestrator) discard(auctionID int64, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := o.pending.Discard(ctx, auctionID, sessionID); err != nil {
		o.log.Error("discard pending bid", "auction_id", auctionID, "session_id", sessionID, "err", err)
	}
}

func (o *Orchestrator) abandon(flow *Flow) {
	if flow.finished() {
		return
	}
	flow.abandonCancel()
	if flow.Bid.Amount.IsPositive() {
		o.discard(flow.AuctionID, flow.SessionID())
	}
	o.log.Info("deposit flow abandoned", "flow", flow.ID, "auction_id", flow.AuctionID, "session_id", flow.SessionID())
	o.finish(flow, domain.Outcome{Kind: domain.OutcomeAbandoned, AuctionID: flow.AuctionID, SessionID: flow.SessionID()})
}

func (o *Orchestrator) finish(flow *Flow, out domain.Outcome) {
	if !flow.finish(out) {
		return
	}
	o.untrack(flow)
	if o.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := o.notifier.Outcome(ctx, out); err != nil {
		o.log.Warn("notify outcome", "flow", flow.ID, "err", err)
	}
}

func (o *Orchestrator) rejected(flow *Flow, bid decimal.Decimal, err error) domain.Outcome {
	o.log.Warn("bid rejected, registration kept",
		"flow", flow.ID,
		"auction_id", flow.AuctionID,
		"bid", bid.String(),
		"err", err,
	)
	return domain.Outcome{
		Kind:      domain.OutcomeBidRejected,
		AuctionID: flow.AuctionID,
		SessionID: flow.SessionID(),
		Amount:    bid,
		Err:       err,
	}
}
