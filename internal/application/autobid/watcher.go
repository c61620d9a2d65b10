package autobid

import (
	"context"
	"errors"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// watch polls the deposit status every PollInterval until the session leaves
// pending or the flow is cancelled. Transport errors are retried on the next tick.
func (o *Orchestrator) watch(flow *Flow) {
	defer o.wg.Done()
	defer o.untrack(flow)

	ctx := flow.ctx
	sessionID := flow.SessionID()
	log := o.log.With("flow", flow.ID, "auction_id", flow.AuctionID, "session_id", sessionID)

	for {
		if !o.sleep(ctx) {
			return
		}

		status, err := o.payments.DepositStatus(ctx, sessionID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Warn("deposit status poll failed", "err", err)
			continue
		}

		switch status {
		case domain.DepositCompleted:
			log.Info("deposit completed")
			o.settle(flow)
			return
		case domain.DepositFailed:
			log.Warn("deposit failed")
			o.fail(flow)
			return
		default:
			log.Debug("deposit still pending")
		}
	}
}

// sleep waits one poll interval on the orchestrator clock.
func (o *Orchestrator) sleep(ctx context.Context) bool {
	tick := make(chan struct{})
	t := o.clock.AfterFunc(o.cfg.PollInterval, func() { close(tick) })
	select {
	case <-tick:
		return ctx.Err() == nil
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

// settle runs once per flow, whichever completion signal arrives first.
func (o *Orchestrator) settle(flow *Flow) {
	if !flow.settling.CompareAndSwap(false, true) {
		return
	}
	ctx := flow.ctx
	if ctx.Err() != nil {
		return
	}

	sessionID := flow.SessionID()
	if !flow.Bid.Amount.IsPositive() {
		o.finish(flow, domain.Outcome{Kind: domain.OutcomeRegistrationComplete, AuctionID: flow.AuctionID, SessionID: sessionID})
		return
	}

	// Take and the submit that follows run under abandonCtx so Close cannot
	// strand a consumed PendingBid.
	pb, ok, err := o.pending.Take(flow.abandonCtx, flow.AuctionID, sessionID)
	if err != nil {
		o.finish(flow, o.rejected(flow, flow.Bid.Amount, err))
		return
	}
	if !ok {
		// Consumed or discarded elsewhere: the deposit still registered us.
		o.finish(flow, domain.Outcome{Kind: domain.OutcomeRegistrationComplete, AuctionID: flow.AuctionID, SessionID: sessionID})
		return
	}
	if flow.abandonCtx.Err() != nil {
		return
	}
	submitCtx, cancel := context.WithTimeout(flow.abandonCtx, submitTimeout)
	defer cancel()

	placed, err := o.bids.PlaceBid(submitCtx, flow.AuctionID, pb.Amount)
	if err != nil {
		if errors.Is(err, context.Canceled) && flow.abandonCtx.Err() != nil {
			return
		}
		o.finish(flow, o.rejected(flow, pb.Amount, err))
		return
	}
	o.log.Info("automatic bid placed",
		"flow", flow.ID,
		"auction_id", flow.AuctionID,
		"session_id", sessionID,
		"amount", pb.Amount.String(),
	)
	o.finish(flow, domain.Outcome{
		Kind:      domain.OutcomeBidPlaced,
		AuctionID: flow.AuctionID,
		SessionID: sessionID,
		Amount:    pb.Amount,
		Bid:       &placed,
	})
}

func (o *Orchestrator) fail(flow *Flow) {
	sessionID := flow.SessionID()
	if flow.Bid.Amount.IsPositive() {
		o.discard(flow.AuctionID, sessionID)
	}
	o.finish(flow, domain.Outcome{
		Kind:      domain.OutcomePaymentFailed,
		AuctionID: flow.AuctionID,
		SessionID: sessionID,
		Amount:    flow.Bid.Amount,
		Err:       domain.ErrDepositFailed,
	})
}
