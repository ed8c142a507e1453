package repository

import "context"

// Keys of the logical records kept per driver session.
const (
	KeyLiveState  = "billing_live"
	KeyLedger     = "billing_ledger"
	KeySyncCursor = "billing_sync_cursor"
	KeyTrip       = "trip_state"
)

// DurableStore is a crash-safe key/value store shared by all sessions and
// scoped by driver identity.
type DurableStore interface {
	// Get returns the blob stored under key for the driver.
	// ok is false when nothing has been written yet.
	Get(ctx context.Context, driverID, key string) (value []byte, ok bool, err error)

	// Set stores value under key for the driver. The write is durable
	// before Set returns.
	Set(ctx context.Context, driverID, key string, value []byte) error
}

// SessionStore is a DurableStore bound to a single driver.
type SessionStore struct {
	store    DurableStore
	driverID string
}

// ForDriver scopes store to driverID.
func ForDriver(store DurableStore, driverID string) *SessionStore {
	return &SessionStore{store: store, driverID: driverID}
}

// DriverID returns the driver the store is scoped to.
func (s *SessionStore) DriverID() string {
	return s.driverID
}

// Get reads key for the bound driver.
func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.store.Get(ctx, s.driverID, key)
}

// Set writes key for the bound driver.
func (s *SessionStore) Set(ctx context.Context, key string, value []byte) error {
	return s.store.Set(ctx, s.driverID, key, value)
}
