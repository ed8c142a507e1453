package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"ridemeter/internal/redis"
	"ridemeter/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DURABLE STORE
// ──────────────────────────────────────────────

// MockDurableStore is an in-memory DurableStore with error injection.
type MockDurableStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	// Counters for verification
	GetCallCount int32
	SetCallCount int32

	// Error injection
	GetError  error
	SetError  error
	failOnKey map[string]error
}

// NewMockDurableStore creates a new mock durable store.
func NewMockDurableStore() *MockDurableStore {
	return &MockDurableStore{
		data:      make(map[string][]byte),
		failOnKey: make(map[string]error),
	}
}

func storeKey(driverID, key string) string {
	return driverID + "/" + key
}

func (m *MockDurableStore) Get(ctx context.Context, driverID, key string) ([]byte, bool, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	v, ok := m.data[storeKey(driverID, key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MockDurableStore) Set(ctx context.Context, driverID, key string, value []byte) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetError != nil {
		return m.SetError
	}
	if err := m.failOnKey[key]; err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[storeKey(driverID, key)] = v
	return nil
}

// SetFailure makes every Set fail with err. A nil err clears it.
func (m *MockDurableStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetError = err
}

// FailKey makes Set of one logical key fail with err. A nil err clears it.
func (m *MockDurableStore) FailKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOnKey, key)
		return
	}
	m.failOnKey[key] = err
}

// Raw returns the stored blob (for test assertions).
func (m *MockDurableStore) Raw(driverID, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[storeKey(driverID, key)]
	return v, ok
}

// Put writes a blob directly, bypassing error injection (for test setup).
func (m *MockDurableStore) Put(driverID, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[storeKey(driverID, key)] = value
}

// ──────────────────────────────────────────────
// MOCK SYNC TRANSPORT
// ──────────────────────────────────────────────

// MockSyncTransport records every batch it is handed.
type MockSyncTransport struct {
	mu      sync.Mutex
	batches []repository.SyncBatch
	seen    map[string]struct{}

	// Counters
	PushCallCount int32

	// Error injection
	FailError error
}

// NewMockSyncTransport creates a new mock sync transport.
func NewMockSyncTransport() *MockSyncTransport {
	return &MockSyncTransport{seen: make(map[string]struct{})}
}

func (m *MockSyncTransport) Push(ctx context.Context, batch repository.SyncBatch) error {
	atomic.AddInt32(&m.PushCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailError != nil {
		return m.FailError
	}
	m.batches = append(m.batches, batch)
	for _, rec := range batch.Records {
		m.seen[rec.ID] = struct{}{}
	}
	return nil
}

// SetFailure configures the transport to fail. A nil err clears it.
func (m *MockSyncTransport) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailError = err
}

// Batches returns the acknowledged batches.
func (m *MockSyncTransport) Batches() []repository.SyncBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.SyncBatch, len(m.batches))
	copy(out, m.batches)
	return out
}

// UniqueRecords returns how many distinct record IDs were acknowledged.
func (m *MockSyncTransport) UniqueRecords() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of SyncLocker.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireSyncLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:sync:" + driverID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseSyncLock(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:sync:"+driverID)
	return nil
}

// Hold takes the driver's lock as another instance would.
func (m *MockLockStore) Hold(driverID string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks["lock:sync:"+driverID] = time.Now().Add(ttl)
}

// IsLocked checks if a driver is locked (for test assertions).
func (m *MockLockStore) IsLocked(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, exists := m.locks["lock:sync:"+driverID]
	return exists && time.Now().Before(expiry)
}

// Ensure mocks implement the production interfaces.
var (
	_ repository.DurableStore  = (*MockDurableStore)(nil)
	_ repository.SyncTransport = (*MockSyncTransport)(nil)
	_ redis.SyncLocker         = (*MockLockStore)(nil)
)

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDiskFull    = errors.New("mock: no space left on device")
	ErrMockBackendDown = errors.New("mock: backend unreachable")
)
