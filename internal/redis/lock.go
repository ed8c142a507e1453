package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client redis.Cmdable
}

// NewLockStore creates a new LockStore.
func NewLockStore(client redis.Cmdable) *LockStore {
	return &LockStore{client: client}
}

func syncLockKey(driverID string) string {
	return fmt.Sprintf("lock:sync:%s", driverID)
}

// AcquireSyncLock attempts to take the backend-sync lock for the driver.
// Returns true if the lock was acquired, false if another instance holds it.
func (s *LockStore) AcquireSyncLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, syncLockKey(driverID), "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseSyncLock releases the backend-sync lock for the driver.
func (s *LockStore) ReleaseSyncLock(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, syncLockKey(driverID)).Err()
}
