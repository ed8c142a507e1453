package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// KVStore is a Redis implementation of repository.DurableStore. Keys never
// expire; durability follows the server's AOF/fsync policy, which must be
// configured with appendfsync always for crash-safe writes.
type KVStore struct {
	client redis.Cmdable
}

// NewKVStore creates a new KVStore.
func NewKVStore(client redis.Cmdable) *KVStore {
	return &KVStore{client: client}
}

func sessionKey(driverID, key string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, driverID, key)
}

// Get retrieves the blob stored for (driverID, key).
func (s *KVStore) Get(ctx context.Context, driverID, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, sessionKey(driverID, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores the blob for (driverID, key) without expiry.
func (s *KVStore) Set(ctx context.Context, driverID, key string, value []byte) error {
	return s.client.Set(ctx, sessionKey(driverID, key), value, 0).Err()
}
