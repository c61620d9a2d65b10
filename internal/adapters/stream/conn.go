package stream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

const apiPrefix = "/api/v1"

// errClosed se devuelve desde Err tras un Close local.
var errClosed = errors.New("stream closed")

// conn es la parte común de SSE y WebSocket: un lector en background que
// publica en events hasta que el stream termina o se cierra.
type conn struct {
	events chan ports.Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

func newConn(parent context.Context) *conn {
	ctx, cancel := context.WithCancel(parent)
	return &conn{
		events: make(chan ports.Event),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *conn) Events() <-chan ports.Event { return c.events }

func (c *conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close no espera al consumidor de Events; sí espera a que el lector termine.
func (c *conn) Close() error {
	c.once.Do(func() {
		c.setErr(errClosed)
		c.cancel()
	})
	<-c.done
	return nil
}

// emit entrega un evento. Devuelve false si el stream se cerró.
func (c *conn) emit(ev ports.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// finish lo llama el lector al salir; el primer error gana.
func (c *conn) finish(err error) {
	if err != nil {
		c.setErr(err)
	}
	close(c.events)
	close(c.done)
}

func (c *conn) setErr(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// topicPath traduce un topic a su ruta bajo /api/v1/{kind}.
func topicPath(kind string, t domain.Topic) (string, error) {
	switch t.Kind {
	case domain.TopicAuction:
		return fmt.Sprintf("%s/%s/auction/%d", apiPrefix, kind, t.AuctionID), nil
	case domain.TopicActiveAuctions:
		if kind != "sse" {
			return "", fmt.Errorf("topic %s not available over %s", t, kind)
		}
		return apiPrefix + "/sse/auctions/active", nil
	case domain.TopicNotifications:
		return fmt.Sprintf("%s/%s/notifications", apiPrefix, kind), nil
	default:
		return "", fmt.Errorf("unknown topic kind %q", t.Kind)
	}
}

func buildURL(base, path, token string) string {
	u := strings.TrimRight(base, "/") + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	return u
}
