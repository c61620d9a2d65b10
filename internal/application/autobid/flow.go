package autobid

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// Flow is one register-and-bid (or deposit-only) attempt. It ends exactly
// once, with an Outcome the caller must branch on.
type Flow struct {
	ID        string
	AuctionID int64
	// Session is nil when the flow skipped registration (already registered).
	Session *domain.DepositSession
	// Bid is the declared amount; zero for deposit-only registration.
	Bid domain.PendingBid

	// ctx stops the watcher (Close or Abandon); abandonCtx only on Abandon.
	// A bid whose PendingBid was already taken is submitted under abandonCtx.
	ctx           context.Context
	cancel        context.CancelFunc
	abandonCtx    context.Context
	abandonCancel context.CancelFunc

	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	outcome domain.Outcome

	abandon  func()
	settling atomic.Bool
}

func newFlow(parent context.Context, id string, auctionID int64) *Flow {
	abandonCtx, abandonCancel := context.WithCancel(context.WithoutCancel(parent))
	ctx, cancel := context.WithCancel(abandonCtx)
	return &Flow{
		ID:            id,
		AuctionID:     auctionID,
		ctx:           ctx,
		cancel:        cancel,
		abandonCtx:    abandonCtx,
		abandonCancel: abandonCancel,
		done:          make(chan struct{}),
	}
}

// SessionID returns the deposit session id, or "" on the direct path.
func (f *Flow) SessionID() string {
	if f.Session == nil {
		return ""
	}
	return f.Session.ID
}

// Done is closed when the flow has an outcome.
func (f *Flow) Done() <-chan struct{} { return f.done }

// Outcome returns the outcome and whether the flow has finished.
func (f *Flow) Outcome() (domain.Outcome, bool) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.outcome, true
	default:
		return domain.Outcome{}, false
	}
}

// Wait blocks until the flow finishes or ctx is done.
func (f *Flow) Wait(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-f.done:
		out, _ := f.Outcome()
		return out, nil
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// Abandon stops the confirmation watcher and drops the intent to auto-bid.
// The deposit session and any registration stay valid server-side.
// It is a no-op once the flow has finished.
func (f *Flow) Abandon() {
	if f.abandon != nil {
		f.abandon()
	}
}

// finish records the outcome; only the first call has effect.
func (f *Flow) finish(out domain.Outcome) bool {
	first := false
	f.once.Do(func() {
		f.mu.Lock()
		f.outcome = out
		f.mu.Unlock()
		close(f.done)
		first = true
	})
	f.abandonCancel()
	return first
}

func (f *Flow) finished() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
