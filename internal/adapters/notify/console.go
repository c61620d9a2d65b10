package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

const maxNotifications = 10

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
	mu    sync.Mutex // varias suscripciones escriben a la vez
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Auction imprime el snapshot de una subasta en una línea.
func (c *Console) Auction(_ context.Context, s domain.AuctionSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	leader := "-"
	if s.HighestBidder != nil {
		leader = s.HighestBidder.Username
	}
	fmt.Fprintf(c.out, "[%s] %s %s price:%s bids:%d leader:%s left:%s\n",
		now(), auctionLabel(s.AuctionID, s.Name), s.Status,
		s.CurrentPrice.StringFixed(0), s.TotalBids, leader, orDash(s.TimeRemaining))
	return nil
}

// ActiveAuctions imprime la lista de subastas activas.
func (c *Console) ActiveAuctions(_ context.Context, list domain.ActiveAuctions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(list.Auctions) == 0 {
		fmt.Fprintf(c.out, "[%s] no active auctions\n", now())
		return nil
	}
	if !c.table {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %d active", now(), list.TotalActive)
		for i, a := range list.Auctions {
			if i >= 4 {
				break
			}
			fmt.Fprintf(&sb, " | %s %s", auctionLabel(a.AuctionID, a.Name), a.CurrentPrice.StringFixed(0))
		}
		fmt.Fprintln(c.out, sb.String())
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d active auctions\n", now(), list.TotalActive)
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Auction", "Product", "Price", "Bids", "Left")
	for _, a := range list.Auctions {
		table.Append(
			fmt.Sprintf("%d", a.AuctionID),
			truncate(a.Name, 30),
			truncate(orDash(a.ProductName), 25),
			a.CurrentPrice.StringFixed(0),
			fmt.Sprintf("%d", a.TotalBids),
			orDash(a.TimeRemaining),
		)
	}
	table.Render()
	return nil
}

// Notifications imprime las notificaciones no leídas más recientes.
func (c *Console) Notifications(_ context.Context, feed domain.NotificationFeed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	unread := feed.Unread()
	fmt.Fprintf(c.out, "[%s] notifications: %d (%d unread)\n", now(), len(feed.Items), unread)
	if unread == 0 || !c.table {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Type", "Title", "Auction", "When")
	shown := 0
	for _, n := range feed.Items {
		if n.Read {
			continue
		}
		if shown >= maxNotifications {
			break
		}
		table.Append(n.Type, truncate(n.Title, 40), truncate(orDash(n.AuctionName), 25), orDash(n.TimeAgo))
		shown++
	}
	table.Render()
	return nil
}

// Outcome imprime el resultado de un flujo de depósito en una línea.
func (c *Console) Outcome(_ context.Context, out domain.Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	icon := "✓"
	switch out.Kind {
	case domain.OutcomeBidRejected, domain.OutcomePaymentFailed:
		icon = "✗"
	case domain.OutcomeAbandoned:
		icon = "·"
	}
	fmt.Fprintf(c.out, "[%s] %s %s\n", now(), icon, out)
	return nil
}

// PrintDepositSession muestra cómo pagar el depósito.
func (c *Console) PrintDepositSession(s domain.DepositSession) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n=== deposit required: auction %d ===\n", s.AuctionID)
	fmt.Fprintf(c.out, "  Amount:  %s\n", s.Amount.StringFixed(0))
	fmt.Fprintf(c.out, "  Session: %s\n", s.ID)
	fmt.Fprintf(c.out, "  Pay at:  %s\n", orDash(s.Instruction.QRURL))
	if s.ExpiresAt != "" {
		fmt.Fprintf(c.out, "  Expires: %s\n", s.ExpiresAt)
	}
	fmt.Fprintln(c.out, "  Waiting for payment confirmation (Ctrl+C to abandon)...")
}

// PrintPendingBids imprime las PendingBids persistidas.
func (c *Console) PrintPendingBids(bids []domain.PendingBid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(bids) == 0 {
		fmt.Fprintln(c.out, "no pending bids")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Auction", "Amount", "Session", "Created")
	for _, b := range bids {
		table.Append(
			fmt.Sprintf("%d", b.AuctionID),
			b.Amount.String(),
			orDash(b.SessionID),
			b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	table.Render()
}

// --- helpers ---

func now() string { return time.Now().Format("15:04:05") }

func auctionLabel(id int64, name string) string {
	if name == "" {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("#%d %s", id, truncate(name, 25))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
