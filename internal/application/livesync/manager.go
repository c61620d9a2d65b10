package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/bidsync/internal/clock"
	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

// Manager creates live subscriptions over a shared Dialer. Subscriptions are
// fully independent of each other; the Manager only keeps track of them so
// they can be closed together.
type Manager struct {
	dialer ports.Dialer
	clock  clock.Clock
	cfg    Config
	log    *slog.Logger

	mu     sync.Mutex
	nextID uint64
	open   map[uint64]func()
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the system clock (tests use clock.Fake).
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the base logger; each subscription adds its topic.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager. Zero fields of cfg take the reference defaults.
func NewManager(dialer ports.Dialer, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		dialer: dialer,
		clock:  clock.NewSystem(),
		cfg:    cfg.withDefaults(),
		log:    slog.Default(),
		open:   make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe opens a subscription for topic. The first connection attempt runs
// before it returns; if it fails the subscription is already in backoff.
// Cancelling ctx has the same effect as calling Close.
func Subscribe[T any](ctx context.Context, m *Manager, topic domain.Topic, feed Feed[T], onUpdate func(T)) (*Subscription[T], error) {
	if err := topic.Validate(); err != nil {
		return nil, fmt.Errorf("livesync.Subscribe: %w", err)
	}
	if onUpdate == nil {
		return nil, fmt.Errorf("livesync.Subscribe %s: nil update callback", topic)
	}
	if feed.Decode == nil || len(feed.Events) == 0 {
		return nil, fmt.Errorf("livesync.Subscribe %s: incomplete feed", topic)
	}

	sub := newSubscription(ctx, m, topic, feed, onUpdate)

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.open[id] = sub.Close
	m.mu.Unlock()

	sub.release = func() {
		m.mu.Lock()
		delete(m.open, id)
		m.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, sub.Close)
	sub.mu.Lock()
	sub.stopWatch = stop
	sub.mu.Unlock()

	sub.connect()
	return sub, nil
}

// SubscribeAuction mirrors one auction's full state.
func (m *Manager) SubscribeAuction(ctx context.Context, auctionID int64, onUpdate func(domain.AuctionSnapshot)) (*Subscription[domain.AuctionSnapshot], error) {
	return Subscribe(ctx, m, domain.AuctionTopic(auctionID), AuctionFeed(auctionID), onUpdate)
}

// SubscribeActiveAuctions mirrors the list of currently active auctions.
func (m *Manager) SubscribeActiveAuctions(ctx context.Context, onUpdate func(domain.ActiveAuctions)) (*Subscription[domain.ActiveAuctions], error) {
	return Subscribe(ctx, m, domain.ActiveAuctionsTopic(), ActiveAuctionsFeed(), onUpdate)
}

// SubscribeNotifications mirrors a user's notification feed.
func (m *Manager) SubscribeNotifications(ctx context.Context, userID int64, onUpdate func(domain.NotificationFeed)) (*Subscription[domain.NotificationFeed], error) {
	return Subscribe(ctx, m, domain.NotificationsTopic(userID), NotificationsFeed(), onUpdate)
}

// Active returns how many subscriptions have not been closed yet.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// CloseAll closes every subscription created by this Manager.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	closers := make([]func(), 0, len(m.open))
	for _, c := range m.open {
		closers = append(closers, c)
	}
	m.mu.Unlock()

	for _, c := range closers {
		c()
	}
}
