package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// PostgresFilterState keeps the filter state blob in storefront.filter_states under one key.
type PostgresFilterState struct {
	db  *sql.DB
	key string
}

// NewPostgresFilterState binds a persister to key.
func NewPostgresFilterState(db *sql.DB, key string) (*PostgresFilterState, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyFilterStateID
	}
	return &PostgresFilterState{db: db, key: key}, nil
}

const loadFilterStateQuery = `
	SELECT state
	FROM storefront.filter_states
	WHERE key = $1;
`

const saveFilterStateQuery = `
	INSERT INTO storefront.filter_states (key, state, updated_at)
	VALUES ($1, $2, CURRENT_TIMESTAMP)
	ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = CURRENT_TIMESTAMP;
`

// LoadFilterState returns the saved blob, or nil when the key has never been written.
func (s *PostgresFilterState) LoadFilterState(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, loadFilterStateQuery, s.key).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: LoadFilterState failed to scan row: %w", mapPQError(err))
	}
	return blob, nil
}

// SaveFilterState upserts the blob.
func (s *PostgresFilterState) SaveFilterState(ctx context.Context, blob []byte) error {
	if _, err := s.db.ExecContext(ctx, saveFilterStateQuery, s.key, string(blob)); err != nil {
		return fmt.Errorf("store: SaveFilterState failed to execute upsert: %w", mapPQError(err))
	}
	return nil
}

// mapPQError turns an undefined_table error into ErrFilterStateSchema.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42P01" {
		return fmt.Errorf("%w: %s", ErrFilterStateSchema, pqErr.Message)
	}
	return err
}

// RedisFilterState keeps the filter state blob in a single Redis key without expiry.
type RedisFilterState struct {
	client *redis.Client
	key    string
}

// NewRedisFilterState binds a persister to key.
func NewRedisFilterState(client *redis.Client, key string) (*RedisFilterState, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyFilterStateID
	}
	return &RedisFilterState{client: client, key: key}, nil
}

// LoadFilterState returns the saved blob, or nil when the key does not exist.
func (s *RedisFilterState) LoadFilterState(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: redis get %q: %w", s.key, err)
	}
	return blob, nil
}

// SaveFilterState overwrites the key.
func (s *RedisFilterState) SaveFilterState(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %q: %w", s.key, err)
	}
	return nil
}
