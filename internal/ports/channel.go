package ports

import (
	"context"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

// HeartbeatEvent es el nombre del evento de keepalive del servidor.
const HeartbeatEvent = "heartbeat"

// Event es un frame recibido por una conexión push: nombre y payload crudo.
type Event struct {
	Name string
	Data []byte
}

// Connection es una única conexión push de larga vida.
// Events se cierra cuando el stream termina (error o cierre remoto); Err
// devuelve la causa. Close no bloquea esperando al consumidor de Events y,
// tras Close, Events se cierra después de como mucho un evento en vuelo.
type Connection interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Dialer abre una Connection para la dirección de canal del topic.
// ctx acota solo el handshake, no la vida de la conexión.
// La credencial de auth la gestiona la implementación.
type Dialer interface {
	Dial(ctx context.Context, topic domain.Topic) (Connection, error)
}
