package storage

// sqlite.go — PendingBids persistentes.
//
// Estrategia:
//   - `pending_bids`: UNA fila por subasta (auction_id es PK). Create no pisa
//     una fila existente, así se garantiza como mucho una PendingBid por subasta.
//   - Take es un único DELETE ... RETURNING filtrado por sesión: dos consumos
//     concurrentes nunca devuelven la misma fila.
//   - Importes como TEXT decimal, nunca REAL.
//   - Prune al arrancar: intents sin sesión de más de 1 día (el registro murió a medias).

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_bids (
    auction_id  INTEGER PRIMARY KEY,
    amount      TEXT    NOT NULL,
    session_id  TEXT    NOT NULL DEFAULT '',
    created_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_session ON pending_bids(session_id);
`

const retentionOrphans = 24 * time.Hour

// SQLiteStorage implementa ports.PendingBidStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia intents huérfanos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOrphans(context.Background())
	return s, nil
}

func (s *SQLiteStorage) Create(ctx context.Context, bid domain.PendingBid) error {
	created := bid.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_bids (auction_id, amount, session_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(auction_id) DO NOTHING
	`, bid.AuctionID, bid.Amount.String(), bid.SessionID, created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage.Create: insert auction %d: %w", bid.AuctionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.Create: auction %d: %w", bid.AuctionID, domain.ErrPendingBidExists)
	}
	return nil
}

// Attach solo asigna sesión a una PendingBid que todavía no la tiene.
func (s *SQLiteStorage) Attach(ctx context.Context, auctionID int64, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("storage.Attach: empty session id")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_bids SET session_id = ? WHERE auction_id = ? AND session_id = ''`,
		sessionID, auctionID,
	)
	if err != nil {
		return fmt.Errorf("storage.Attach: auction %d: %w", auctionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.Attach: auction %d: %w", auctionID, domain.ErrPendingBidNotFound)
	}
	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, auctionID int64) (domain.PendingBid, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT auction_id, amount, session_id, created_at FROM pending_bids WHERE auction_id = ?`,
		auctionID,
	)
	pb, err := scanPendingBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingBid{}, false, nil
	}
	if err != nil {
		return domain.PendingBid{}, false, fmt.Errorf("storage.Get: auction %d: %w", auctionID, err)
	}
	return pb, true, nil
}

func (s *SQLiteStorage) Take(ctx context.Context, auctionID int64, sessionID string) (domain.PendingBid, bool, error) {
	if sessionID == "" {
		return domain.PendingBid{}, false, nil
	}
	row := s.db.QueryRowContext(ctx, `
		DELETE FROM pending_bids
		WHERE auction_id = ? AND session_id = ?
		RETURNING auction_id, amount, session_id, created_at
	`, auctionID, sessionID)
	pb, err := scanPendingBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PendingBid{}, false, nil
	}
	if err != nil {
		return domain.PendingBid{}, false, fmt.Errorf("storage.Take: auction %d: %w", auctionID, err)
	}
	return pb, true, nil
}

// Discard no falla si no hay nada que borrar.
func (s *SQLiteStorage) Discard(ctx context.Context, auctionID int64, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_bids WHERE auction_id = ? AND session_id = ?`,
		auctionID, sessionID,
	); err != nil {
		return fmt.Errorf("storage.Discard: auction %d: %w", auctionID, err)
	}
	return nil
}

// List devuelve las PendingBids más antiguas primero.
func (s *SQLiteStorage) List(ctx context.Context) ([]domain.PendingBid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT auction_id, amount, session_id, created_at FROM pending_bids ORDER BY created_at, auction_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.List: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingBid
	for rows.Next() {
		pb, err := scanPendingBid(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.List: scan row: %w", err)
		}
		out = append(out, pb)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingBid(r rowScanner) (domain.PendingBid, error) {
	var (
		pb              domain.PendingBid
		amount, created string
	)
	if err := r.Scan(&pb.AuctionID, &amount, &pb.SessionID, &created); err != nil {
		return domain.PendingBid{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.PendingBid{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	pb.Amount = d
	pb.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		// no bloquea el consumo; solo afecta al orden de List y al prune
		slog.Warn("pending bid with unparseable created_at", "auction_id", pb.AuctionID, "created_at", created, "err", err)
	}
	return pb, nil
}

// pruneOrphans elimina intents que nunca recibieron sesión de depósito.
func (s *SQLiteStorage) pruneOrphans(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionOrphans).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_bids WHERE session_id = '' AND created_at < ?`, cutoff)
	if err != nil {
		slog.Warn("storage: prune orphan pending bids failed", "err", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("storage: pruned orphan pending bids", "rows", n)
	}
}
