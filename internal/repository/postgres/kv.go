package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridemeter/internal/repository"
)

// KVStore is a PostgreSQL implementation of repository.DurableStore.
// Every Set is a single committed upsert, so it is durable on return.
type KVStore struct {
	q Querier
}

// NewKVStore creates a new PostgreSQL KV store.
func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{q: db}
}

// Get retrieves the value for (driverID, key).
func (r *KVStore) Get(ctx context.Context, driverID, key string) ([]byte, bool, error) {
	query := `SELECT value FROM session_kv WHERE driver_id = $1 AND key = $2`

	var value []byte
	err := r.q.QueryRowContext(ctx, query, driverID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return value, true, nil
}

// Set upserts the value for (driverID, key).
func (r *KVStore) Set(ctx context.Context, driverID, key string, value []byte) error {
	query := `
		INSERT INTO session_kv (driver_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (driver_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	_, err := r.q.ExecContext(ctx, query, driverID, key, value)
	return err
}

var _ repository.DurableStore = (*KVStore)(nil)
