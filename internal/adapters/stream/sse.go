package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

const (
	defaultEvent = "message"
	maxFrameSize = 1 << 20
)

// SSEDialer abre streams text/event-stream contra /api/v1/sse/...
type SSEDialer struct {
	base   string
	token  string
	client *http.Client
}

// NewSSEDialer crea un dialer SSE. El token viaja como query param y como
// Authorization, porque los endpoints SSE aceptan cualquiera de los dos.
func NewSSEDialer(base, token string) *SSEDialer {
	return &SSEDialer{
		base:   base,
		token:  token,
		client: &http.Client{}, // sin Timeout: el stream es de larga vida
	}
}

func (d *SSEDialer) Dial(ctx context.Context, topic domain.Topic) (ports.Connection, error) {
	path, err := topicPath("sse", topic)
	if err != nil {
		return nil, fmt.Errorf("stream.SSEDialer: %w", err)
	}

	c := newConn(context.WithoutCancel(ctx))
	// ctx solo acota el handshake.
	stop := context.AfterFunc(ctx, c.cancel)

	req, err := http.NewRequestWithContext(c.ctx, http.MethodGet, buildURL(d.base, path, d.token), nil)
	if err != nil {
		stop()
		c.cancel()
		return nil, fmt.Errorf("stream.SSEDialer: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if !stop() {
		if err == nil {
			resp.Body.Close()
		}
		c.cancel()
		return nil, fmt.Errorf("stream.SSEDialer %s: %w", topic, context.Cause(ctx))
	}
	if err != nil {
		c.cancel()
		return nil, fmt.Errorf("stream.SSEDialer %s: %w", topic, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		c.cancel()
		return nil, fmt.Errorf("stream.SSEDialer %s: status %d: %s", topic, resp.StatusCode, bytes.TrimSpace(body))
	}

	slog.Debug("sse stream open", "topic", topic.String())
	go c.readSSE(resp.Body)
	return c, nil
}

// readSSE parsea frames `event:`/`data:` separados por línea en blanco.
// Los comentarios (`: ping`) son keepalive y se publican como heartbeat.
func (c *conn) readSSE(body io.ReadCloser) {
	var readErr error
	defer func() { c.finish(readErr) }()
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	var (
		name string
		data bytes.Buffer
	)
	for sc.Scan() {
		line := sc.Bytes()

		if len(line) == 0 {
			if data.Len() == 0 && name == "" {
				continue
			}
			ev := ports.Event{Name: name, Data: bytes.Clone(data.Bytes())}
			if ev.Name == "" {
				ev.Name = defaultEvent
			}
			name = ""
			data.Reset()
			if !c.emit(ev) {
				return
			}
			continue
		}

		if line[0] == ':' {
			if !c.emit(ports.Event{Name: ports.HeartbeatEvent}) {
				return
			}
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			name = string(value)
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(value)
		default:
			// id, retry: no se usan
		}
	}

	if err := sc.Err(); err != nil {
		readErr = fmt.Errorf("read sse: %w", err)
		return
	}
	readErr = io.EOF
}
