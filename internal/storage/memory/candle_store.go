package memory

import (
	"context"
	"sync"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu        sync.RWMutex
	bySession map[string][]*domain.Candle // kept ordered by date ASC
	dates     map[string]map[time.Time]struct{}
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		bySession: make(map[string][]*domain.Candle),
		dates:     make(map[string]map[time.Time]struct{}),
	}
}

// InsertBulk adds a session's candles. Fails the entire batch on
// duplicate (session_id, date).
func (s *CandleStore) InsertBulk(_ context.Context, sessionID string, candles []*domain.Candle) error {
	if sessionID == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.dates[sessionID]
	seen := make(map[time.Time]struct{}, len(candles))
	for _, c := range candles {
		if c == nil {
			return storage.ErrInvalidInput
		}
		key := c.Date.UTC()
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := existing[key]; dup {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	if existing == nil {
		existing = make(map[time.Time]struct{})
		s.dates[sessionID] = existing
	}
	for _, c := range candles {
		candleCopy := *c
		existing[c.Date.UTC()] = struct{}{}
		s.bySession[sessionID] = insertSorted(s.bySession[sessionID], &candleCopy)
	}
	return nil
}

// GetBySession retrieves all candles for a session, ordered by date ASC.
func (s *CandleStore) GetBySession(_ context.Context, sessionID string) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.bySession[sessionID]
	out := make([]*domain.Candle, 0, len(stored))
	for _, c := range stored {
		candleCopy := *c
		out = append(out, &candleCopy)
	}
	return out, nil
}

// GetByDateRange retrieves session candles within [start, end] (inclusive).
func (s *CandleStore) GetByDateRange(_ context.Context, sessionID string, start, end time.Time) ([]*domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Candle
	for _, c := range s.bySession[sessionID] {
		if c.Date.Before(start) || c.Date.After(end) {
			continue
		}
		candleCopy := *c
		out = append(out, &candleCopy)
	}
	return out, nil
}

// insertSorted keeps the session slice ordered by date ASC.
func insertSorted(candles []*domain.Candle, c *domain.Candle) []*domain.Candle {
	i := len(candles)
	for i > 0 && candles[i-1].Date.After(c.Date) {
		i--
	}
	candles = append(candles, nil)
	copy(candles[i+1:], candles[i:])
	candles[i] = c
	return candles
}

var _ storage.CandleStore = (*CandleStore)(nil)
