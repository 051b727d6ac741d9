package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu        sync.RWMutex
	byAddress map[string]*domain.TokenRecord
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		byAddress: make(map[string]*domain.TokenRecord),
	}
}

// Insert adds a new token. Returns ErrDuplicateKey if the address exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.TokenRecord) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[t.Address]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *t
	s.byAddress[t.Address] = &recCopy
	return nil
}

// GetByAddress retrieves a token by its address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, address string) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.byAddress[address]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *t
	return &recCopy, nil
}

// List retrieves all tokens, newest first.
func (s *TokenStore) List(_ context.Context) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TokenRecord, 0, len(s.byAddress))
	for _, t := range s.byAddress {
		recCopy := *t
		out = append(out, &recCopy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAtMs > out[j].CreatedAtMs
	})
	return out, nil
}

// UpdateImageURL sets the image URL for a token. Returns ErrNotFound if not exists.
func (s *TokenStore) UpdateImageURL(_ context.Context, address, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.byAddress[address]
	if !exists {
		return storage.ErrNotFound
	}
	t.ImageURL = imageURL
	return nil
}

var _ storage.TokenStore = (*TokenStore)(nil)
