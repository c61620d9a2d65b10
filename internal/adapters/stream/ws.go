package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/alejandrodnm/bidsync/internal/domain"
	"github.com/alejandrodnm/bidsync/internal/ports"
)

const (
	wsReadLimit    = 1 << 20
	wsWriteTimeout = 5 * time.Second
)

var pongFrame = []byte(`{"type":"pong"}`)

// WSDialer abre conexiones WebSocket contra /api/v1/ws/...
// Cada frame JSON se publica con su `type` como nombre de evento.
type WSDialer struct {
	base  string
	token string
}

// NewWSDialer crea un dialer WebSocket. base es http(s)://host; se traduce a ws(s).
func NewWSDialer(base, token string) *WSDialer {
	return &WSDialer{base: base, token: token}
}

func (d *WSDialer) Dial(ctx context.Context, topic domain.Topic) (ports.Connection, error) {
	path, err := topicPath("ws", topic)
	if err != nil {
		return nil, fmt.Errorf("stream.WSDialer: %w", err)
	}
	u := buildURL(wsBase(d.base), path, d.token)

	// ctx acota solo el handshake; la conexión no queda ligada a él.
	ws, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("stream.WSDialer %s: dial: %w", topic, err)
	}
	ws.SetReadLimit(wsReadLimit)

	c := newConn(context.WithoutCancel(ctx))
	slog.Debug("websocket open", "topic", topic.String())
	go c.readWS(ws)
	return c, nil
}

type wsEnvelope struct {
	Type string `json:"type"`
}

// readWS publica cada frame. `ping` se contesta con `pong`; ambos son heartbeat.
func (c *conn) readWS(ws *websocket.Conn) {
	var readErr error
	defer func() { c.finish(readErr) }()
	defer ws.CloseNow()

	for {
		_, data, err := ws.Read(c.ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				readErr = fmt.Errorf("websocket closed by server: %w", err)
			} else {
				readErr = fmt.Errorf("read websocket: %w", err)
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			// Frame sin `type`: se entrega tal cual para que el decoder lo descarte.
			if !c.emit(ports.Event{Name: defaultEvent, Data: data}) {
				return
			}
			continue
		}

		switch strings.ToLower(env.Type) {
		case "ping":
			writeCtx, cancel := context.WithTimeout(c.ctx, wsWriteTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, pongFrame)
			cancel()
			if err != nil {
				readErr = fmt.Errorf("write pong: %w", err)
				return
			}
			if !c.emit(ports.Event{Name: ports.HeartbeatEvent}) {
				return
			}
		case "pong":
			if !c.emit(ports.Event{Name: ports.HeartbeatEvent}) {
				return
			}
		default:
			if !c.emit(ports.Event{Name: env.Type, Data: data}) {
				return
			}
		}
	}
}

func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
