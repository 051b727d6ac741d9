package storage

import (
	"context"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// TokenStore provides access to the token registry.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, t *domain.TokenRecord) error

	// GetByAddress retrieves a token by its address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.TokenRecord, error)

	// List retrieves all tokens, newest first.
	List(ctx context.Context) ([]*domain.TokenRecord, error)

	// UpdateImageURL sets the image URL for a token. Returns ErrNotFound if not exists.
	UpdateImageURL(ctx context.Context, address, imageURL string) error
}

// CandleStore provides access to archived session candles.
type CandleStore interface {
	// InsertBulk adds a session's candles. Fails the entire batch on
	// duplicate (session_id, date).
	InsertBulk(ctx context.Context, sessionID string, candles []*domain.Candle) error

	// GetBySession retrieves all candles for a session, ordered by date ASC.
	GetBySession(ctx context.Context, sessionID string) ([]*domain.Candle, error)

	// GetByDateRange retrieves session candles within [start, end] (inclusive).
	GetByDateRange(ctx context.Context, sessionID string, start, end time.Time) ([]*domain.Candle, error)
}
