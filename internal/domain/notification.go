package domain

// Notification es una entrada del feed de notificaciones de un usuario.
type Notification struct {
	ID          int64
	Title       string
	Message     string
	Type        string
	Read        bool
	AuctionID   int64
	AuctionName string
	TimeAgo     string
	CreatedAt   string
}

// NotificationFeed es la lista completa (no incremental) de notificaciones.
type NotificationFeed struct {
	Items []Notification
}

// Unread cuenta las notificaciones no leídas.
func (f NotificationFeed) Unread() int {
	n := 0
	for _, item := range f.Items {
		if !item.Read {
			n++
		}
	}
	return n
}
