package livesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alejandrodnm/bidsync/internal/clock"
	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

var (
	errHeartbeatTimeout = errors.New("heartbeat watchdog expired")
	errStreamEnded      = errors.New("stream ended by server")
)

// Feed describes one topic flavour: which event names carry snapshots and
// how to decode them. Heartbeats are handled by the Subscription itself.
type Feed[T any] struct {
	Events []string
	Decode func(data []byte) (T, error)
}

func (f Feed[T]) accepts(name string) bool {
	return slices.Contains(f.Events, name)
}

// Subscription mirrors one Topic through exactly one live Connection.
//
// All mutable state lives here and is guarded by mu. Every connection attempt
// bumps gen; events, watchdog expiries and retry timers carry the gen they were
// created for and become no-ops once it changes, so a stale connection can never
// deliver or trigger a reconnect.
type Subscription[T any] struct {
	topic    domain.Topic
	feed     Feed[T]
	dialer   ports.Dialer
	onUpdate func(T)
	cfg      Config
	clock    clock.Clock
	log      *slog.Logger
	release  func()

	ctx    context.Context
	cancel context.CancelFunc

	// dispatch is held while onUpdate runs; Close waits on it. Lock order: dispatch, then mu.
	dispatch sync.Mutex

	mu        sync.Mutex
	state     State
	conn      ports.Connection
	gen       uint64
	retries   int
	policy    *backoff.ExponentialBackOff
	heartbeat clock.Timer
	hbSeq     uint64
	deadline  time.Time
	retry     clock.Timer
	stopWatch func() bool // detaches the ctx-cancellation hook
}

func newSubscription[T any](ctx context.Context, m *Manager, topic domain.Topic, feed Feed[T], onUpdate func(T)) *Subscription[T] {
	subCtx, cancel := context.WithCancel(ctx)
	return &Subscription[T]{
		topic:    topic,
		feed:     feed,
		dialer:   m.dialer,
		onUpdate: onUpdate,
		cfg:      m.cfg,
		clock:    m.clock,
		log:      m.log.With("topic", topic.String()),
		ctx:      subCtx,
		cancel:   cancel,
		state:    StateIdle,
		policy:   m.cfg.newBackOff(),
	}
}

// Topic returns the immutable topic of the subscription.
func (s *Subscription[T]) Topic() domain.Topic { return s.topic }

// State returns the current lifecycle state.
func (s *Subscription[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retries returns how many reconnects have been scheduled since the last successful open.
func (s *Subscription[T]) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// HeartbeatDeadline returns the instant at which the watchdog fires if nothing arrives.
// Zero when no connection is open.
func (s *Subscription[T]) HeartbeatDeadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Close stops the subscription. It is idempotent and returns once the
// lifecycle is closed, both timers are cancelled and any onUpdate already
// running has returned; no onUpdate is dispatched after it returns, even for
// events already queued on the connection. The underlying connection teardown
// may still be completing. Close must not be called from inside onUpdate.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateClosed
	s.retries = s.cfg.MaxRetries
	s.gen++
	s.stopTimersLocked()
	conn := s.conn
	s.conn = nil
	stopWatch := s.stopWatch
	s.mu.Unlock()

	s.cancel()
	if stopWatch != nil {
		stopWatch()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			s.log.Debug("close connection", "err", err)
		}
	}
	// wait for an in-flight onUpdate
	s.dispatch.Lock()
	s.dispatch.Unlock()

	if s.release != nil {
		s.release()
	}
	s.log.Debug("subscription closed", "from", prev.String())
}

// connect makes one connection attempt. Dial runs without holding mu so
// Close can cancel it through ctx.
func (s *Subscription[T]) connect() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.state = StateConnecting
	attempt := s.retries
	s.mu.Unlock()

	s.log.Debug("connecting", "attempt", attempt)

	dialCtx, cancel := context.WithTimeout(s.ctx, s.cfg.DialTimeout)
	conn, err := s.dialer.Dial(dialCtx, s.topic)
	cancel()

	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		s.failLocked(gen, fmt.Errorf("dial: %w", err))
		s.mu.Unlock()
		return
	}

	s.conn = conn
	s.state = StateOpen
	s.retries = 0
	s.policy.Reset()
	s.armHeartbeatLocked(gen)
	s.mu.Unlock()

	s.log.Info("live channel open")
	go s.pump(gen, conn)
}

// pump reads events of one connection in order and dispatches them.
func (s *Subscription[T]) pump(gen uint64, conn ports.Connection) {
	for ev := range conn.Events() {
		if !s.handle(gen, ev) {
			return
		}
	}
	cause := conn.Err()
	if cause == nil {
		cause = errStreamEnded
	}
	s.fail(gen, cause)
}

// handle processes one event. It returns false once the connection is stale.
func (s *Subscription[T]) handle(gen uint64, ev ports.Event) bool {
	s.mu.Lock()
	if gen != s.gen || s.state != StateOpen {
		s.mu.Unlock()
		return false
	}
	if ev.Name == ports.HeartbeatEvent {
		s.armHeartbeatLocked(gen)
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()

	if !s.feed.accepts(ev.Name) {
		s.log.Debug("ignoring event", "event", ev.Name)
		return true
	}

	v, err := s.feed.Decode(ev.Data)
	if err != nil {
		s.log.Warn("dropping malformed payload", "event", ev.Name, "err", err)
		return true
	}

	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	s.mu.Lock()
	if gen != s.gen || s.state != StateOpen {
		s.mu.Unlock()
		return false
	}
	s.armHeartbeatLocked(gen)
	s.mu.Unlock()

	s.onUpdate(v)
	return true
}

func (s *Subscription[T]) fail(gen uint64, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(gen, cause)
}

// failLocked tears down the current connection and either schedules the next
// attempt or gives up. Only the first failure of a given gen has any effect.
func (s *Subscription[T]) failLocked(gen uint64, cause error) {
	if gen != s.gen || (s.state != StateOpen && s.state != StateConnecting) {
		return
	}
	s.stopTimersLocked()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close failed connection", "err", err)
		}
		s.conn = nil
	}

	if s.retries >= s.cfg.MaxRetries {
		s.state = StateExhausted
		s.log.Warn("live channel retries exhausted, giving up", "retries", s.retries, "err", cause)
		return
	}

	delay := s.policy.NextBackOff()
	s.retries++
	s.state = StateBackoff
	s.retry = s.clock.AfterFunc(delay, func() { s.reconnect(gen) })

	s.log.Warn("live channel lost, reconnecting",
		"err", cause,
		"retry", s.retries,
		"max_retries", s.cfg.MaxRetries,
		"delay", delay,
	)
}

func (s *Subscription[T]) reconnect(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateBackoff {
		s.mu.Unlock()
		return
	}
	s.retry = nil
	s.mu.Unlock()
	s.connect()
}

// armHeartbeatLocked (re)starts the sliding watchdog window.
func (s *Subscription[T]) armHeartbeatLocked(gen uint64) {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.hbSeq++
	seq := s.hbSeq
	s.deadline = s.clock.Now().Add(s.cfg.HeartbeatTimeout)
	s.heartbeat = s.clock.AfterFunc(s.cfg.HeartbeatTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// a re-arm may have raced with this callback
		if seq != s.hbSeq {
			return
		}
		s.failLocked(gen, errHeartbeatTimeout)
	})
}

func (s *Subscription[T]) stopTimersLocked() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
	s.hbSeq++
	s.deadline = time.Time{}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}
