package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
//
// MergeTree does not enforce uniqueness at insert time, so duplicate
// (session_id, date) keys are checked explicitly before each batch.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds a session's candles. Fails the entire batch on
// duplicate (session_id, date).
func (s *CandleStore) InsertBulk(ctx context.Context, sessionID string, candles []*domain.Candle) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	seen := make(map[time.Time]struct{}, len(candles))
	for _, c := range candles {
		if c == nil {
			return storage.ErrInvalidInput
		}
		key := c.Date.UTC()
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, c := range candles {
		exists, err := s.exists(ctx, sessionID, c.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO session_candles (
			session_id, date, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			sessionID, c.Date.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySession retrieves all candles for a session, ordered by date ASC.
func (s *CandleStore) GetBySession(ctx context.Context, sessionID string) ([]*domain.Candle, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM session_candles
		WHERE session_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query by session: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetByDateRange retrieves session candles within [start, end] (inclusive).
func (s *CandleStore) GetByDateRange(ctx context.Context, sessionID string, start, end time.Time) ([]*domain.Candle, error) {
	query := `
		SELECT date, open, high, low, close, volume
		FROM session_candles
		WHERE session_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, sessionID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// exists checks if a candle with the given key exists.
func (s *CandleStore) exists(ctx context.Context, sessionID string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM session_candles
		WHERE session_id = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sessionID, date.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanCandles scans multiple rows.
func scanCandles(rows driver.Rows) ([]*domain.Candle, error) {
	var candles []*domain.Candle

	for rows.Next() {
		var c domain.Candle

		err := rows.Scan(&c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Date = c.Date.UTC()
		candles = append(candles, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
