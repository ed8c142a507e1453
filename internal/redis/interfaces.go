package redis

import (
	"context"
	"time"

	"ridemeter/internal/repository"
)

// SyncLocker serializes backend syncs of one driver across instances.
type SyncLocker interface {
	AcquireSyncLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error)
	ReleaseSyncLock(ctx context.Context, driverID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SyncLocker              = (*LockStore)(nil)
	_ repository.DurableStore = (*KVStore)(nil)
)
