package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/bidsync/internal/domain"
)

const (
	defaultBase = "http://localhost:8000"
	apiPrefix   = "/api/v1"

	// El backend limita por IP; nos quedamos muy por debajo.
	ratePerSec = 10
	rateBurst  = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del marketplace con auth, rate limiting y retries.
// Implementa ports.AuctionReader, ports.Participation, ports.PaymentGateway y ports.BidPlacer.
type Client struct {
	http    *http.Client
	base    string
	token   string
	limiter *rate.Limiter
}

// NewClient crea un Client contra base (sin /api/v1). Si base está vacío usa localhost.
func NewClient(base, token string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    strings.TrimRight(base, "/"),
		token:   token,
		limiter: rate.NewLimiter(ratePerSec, rateBurst),
	}
}

// APIError es una respuesta 4xx que no corresponde a ningún error de dominio.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.Status, e.Detail)
}

func (c *Client) url(path string) string {
	return c.base + apiPrefix + path
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetry(ctx, true, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	}, out)
}

// post hace un POST JSON. No se reintenta salvo 429: registrar o pujar dos
// veces no es idempotente.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, false, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// doWithRetry ejecuta la petición con backoff exponencial. Los errores de
// transporte y 5xx solo se reintentan si la petición es idempotente.
func (c *Client) doWithRetry(ctx context.Context, idempotent bool, build func() (*http.Request, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if !idempotent || attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "path", req.URL.Path, "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if !idempotent || attempt == maxRetries {
				return fmt.Errorf("server error %d after %d attempts", resp.StatusCode, attempt+1)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return mapError(resp.StatusCode, body)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

const minimumBidPrefix = "Bid must be at least"

// Mensajes del backend que se traducen a errores de dominio.
var detailErrors = []struct {
	prefix string
	err    error
}{
	{"You have already registered", domain.ErrAlreadyRegistered},
	{"You must register and pay the deposit", domain.ErrNotRegistered},
	{"Auction not found", domain.ErrAuctionNotFound},
}

// minimumBidError es el rechazo "Bid must be at least X"; minimum es cero si
// X no se pudo leer.
type minimumBidError struct {
	detail  string
	minimum decimal.Decimal
}

func (e *minimumBidError) Error() string { return fmt.Sprintf("%v: %s", domain.ErrOutbid, e.detail) }
func (e *minimumBidError) Unwrap() error { return domain.ErrOutbid }

// parseMinimum lee el importe de "Bid must be at least 1,500,000 ₫".
func parseMinimum(detail string) decimal.Decimal {
	rest := strings.TrimPrefix(detail, minimumBidPrefix)
	var digits strings.Builder
loop:
	for _, r := range strings.TrimSpace(rest) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			digits.WriteRune(r)
		case r == ',':
		default:
			break loop
		}
	}
	m, err := decimal.NewFromString(digits.String())
	if err != nil {
		return decimal.Zero
	}
	return m
}

func mapError(status int, body []byte) error {
	detail := errorDetail(body)
	if strings.HasPrefix(detail, minimumBidPrefix) {
		return &minimumBidError{detail: detail, minimum: parseMinimum(detail)}
	}
	for _, d := range detailErrors {
		if strings.HasPrefix(detail, d.prefix) {
			return fmt.Errorf("%w: %s", d.err, detail)
		}
	}
	return &APIError{Status: status, Detail: detail}
}

// errorDetail extrae `detail`, que puede ser un string o la lista de errores
// de validación de FastAPI.
func errorDetail(body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}
	return string(env.Detail)
}
