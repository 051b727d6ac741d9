package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if the address exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.TokenRecord) error {
	if t == nil || t.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			address, name, symbol, decimals, supply, image_url, creator, created_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		t.Address,
		t.Name,
		t.Symbol,
		t.Decimals,
		t.Supply,
		t.ImageURL,
		t.Creator,
		t.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token by its address. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, address string) (*domain.TokenRecord, error) {
	query := `
		SELECT address, name, symbol, decimals, supply, image_url, creator, created_at_ms
		FROM tokens
		WHERE address = $1
	`

	row := s.pool.QueryRow(ctx, query, address)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// List retrieves all tokens, newest first.
func (s *TokenStore) List(ctx context.Context) ([]*domain.TokenRecord, error) {
	query := `
		SELECT address, name, symbol, decimals, supply, image_url, creator, created_at_ms
		FROM tokens
		ORDER BY created_at_ms DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// UpdateImageURL sets the image URL for a token. Returns ErrNotFound if not exists.
func (s *TokenStore) UpdateImageURL(ctx context.Context, address, imageURL string) error {
	query := `
		UPDATE tokens SET image_url = $2 WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query, address, imageURL)
	if err != nil {
		return fmt.Errorf("update token image url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanToken scans a single row into a TokenRecord.
func scanToken(row pgx.Row) (*domain.TokenRecord, error) {
	var t domain.TokenRecord

	err := row.Scan(
		&t.Address,
		&t.Name,
		&t.Symbol,
		&t.Decimals,
		&t.Supply,
		&t.ImageURL,
		&t.Creator,
		&t.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
