package domain

import "fmt"

// TopicKind identifica el tipo de stream que se sincroniza.
type TopicKind string

const (
	TopicAuction        TopicKind = "auction"
	TopicActiveAuctions TopicKind = "active-auctions"
	TopicNotifications  TopicKind = "notifications"
)

// Topic identifica qué estado del servidor se está espejando.
// Es un valor inmutable: una suscripción conserva su Topic toda su vida.
type Topic struct {
	Kind      TopicKind
	AuctionID int64 // solo para TopicAuction
	UserID    int64 // solo para TopicNotifications
}

// AuctionTopic devuelve el topic de una subasta concreta.
func AuctionTopic(auctionID int64) Topic {
	return Topic{Kind: TopicAuction, AuctionID: auctionID}
}

// ActiveAuctionsTopic devuelve el topic de la lista de subastas activas.
func ActiveAuctionsTopic() Topic {
	return Topic{Kind: TopicActiveAuctions}
}

// NotificationsTopic devuelve el topic del feed de notificaciones de un usuario.
func NotificationsTopic(userID int64) Topic {
	return Topic{Kind: TopicNotifications, UserID: userID}
}

// String devuelve una representación estable, apta para logs.
func (t Topic) String() string {
	switch t.Kind {
	case TopicAuction:
		return fmt.Sprintf("auction(%d)", t.AuctionID)
	case TopicNotifications:
		return fmt.Sprintf("notifications(%d)", t.UserID)
	default:
		return string(t.Kind)
	}
}

// Validate comprueba que el topic tenga los identificadores que su tipo exige.
func (t Topic) Validate() error {
	switch t.Kind {
	case TopicAuction:
		if t.AuctionID <= 0 {
			return fmt.Errorf("topic %s: auction id must be positive", t.Kind)
		}
	case TopicActiveAuctions:
	case TopicNotifications:
		if t.UserID < 0 {
			return fmt.Errorf("topic %s: invalid user id %d", t.Kind, t.UserID)
		}
	default:
		return fmt.Errorf("unknown topic kind %q", t.Kind)
	}
	return nil
}
