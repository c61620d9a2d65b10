package livesync_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/bidsync/internal/clock"
	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

var errDial = errors.New("dial refused")

// fakeConn relays events pushed by the test. Close and Drop both end the
// stream; after Close no event reaches the consumer.
type fakeConn struct {
	in        chan ports.Event
	out       chan ports.Event
	done      chan struct{}
	ended     chan struct{}
	closeOnce sync.Once
	dropOnce  sync.Once
	closed    atomic.Bool

	mu  sync.Mutex
	err error
}

func newFakeConn() *fakeConn {
	c := &fakeConn{
		in:    make(chan ports.Event),
		out:   make(chan ports.Event),
		done:  make(chan struct{}),
		ended: make(chan struct{}),
	}
	go c.relay()
	return c
}

func (c *fakeConn) relay() {
	defer close(c.out)
	for {
		select {
		case <-c.done:
			return
		case <-c.ended:
			return
		case ev := <-c.in:
			select {
			case c.out <- ev:
			case <-c.done:
				return
			}
		}
	}
}

func (c *fakeConn) Events() <-chan ports.Event { return c.out }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// Emit hands an event to the relay. It returns false if the stream is over.
func (c *fakeConn) Emit(name string, data string) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.in <- ports.Event{Name: name, Data: []byte(data)}:
		return true
	case <-c.done:
		return false
	case <-c.ended:
		return false
	}
}

// Drop simulates the server or network killing the stream.
func (c *fakeConn) Drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.dropOnce.Do(func() { close(c.ended) })
}

func (c *fakeConn) IsClosed() bool { return c.closed.Load() }

type fakeDialer struct {
	clock *clock.Fake

	mu       sync.Mutex
	conns    []*fakeConn
	failures int
	dialedAt []time.Time
	maxOpen  int
}

func newFakeDialer(c *clock.Fake) *fakeDialer {
	return &fakeDialer{clock: c}
}

func (d *fakeDialer) Dial(ctx context.Context, _ domain.Topic) (ports.Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialedAt = append(d.dialedAt, d.clock.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.failures > 0 {
		d.failures--
		return nil, errDial
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	if open := d.openLocked(); open > d.maxOpen {
		d.maxOpen = open
	}
	return c, nil
}

func (d *fakeDialer) openLocked() int {
	n := 0
	for _, c := range d.conns {
		if !c.IsClosed() {
			n++
		}
	}
	return n
}

func (d *fakeDialer) FailNext(n int) {
	d.mu.Lock()
	d.failures = n
	d.mu.Unlock()
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialedAt)
}

func (d *fakeDialer) DialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dialedAt...)
}

func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) MaxOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// recorder collects delivered snapshots.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
