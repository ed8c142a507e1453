package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridemeter/internal/clock"
	"ridemeter/internal/logger"
	"ridemeter/internal/money"
	"ridemeter/internal/repository"
	"ridemeter/internal/repository/memory"
)

var (
	errDiskFull    = errors.New("disk full")
	errBackendDown = errors.New("backend down")
)

// failingStore wraps a memory store and fails writes of selected keys.
type failingStore struct {
	*memory.Store

	mu       sync.Mutex
	failKeys map[string]bool
	failGet  bool
	sets     int
}

func newFailingStore() *failingStore {
	return &failingStore{Store: memory.NewStore(), failKeys: make(map[string]bool)}
}

func (s *failingStore) Get(ctx context.Context, driverID, key string) ([]byte, bool, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return nil, false, errDiskFull
	}
	return s.Store.Get(ctx, driverID, key)
}

func (s *failingStore) Set(ctx context.Context, driverID, key string, value []byte) error {
	s.mu.Lock()
	s.sets++
	fail := s.failKeys[key]
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Store.Set(ctx, driverID, key, value)
}

func (s *failingStore) fail(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.failKeys[k] = true
	}
}

func (s *failingStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeys = make(map[string]bool)
	s.failGet = false
}

// recordingTransport keeps every acknowledged batch.
type recordingTransport struct {
	mu      sync.Mutex
	batches []repository.SyncBatch
	err     error
	calls   int

	// onPush runs before the batch is acknowledged.
	onPush func()
}

func (t *recordingTransport) Push(ctx context.Context, batch repository.SyncBatch) error {
	t.mu.Lock()
	t.calls++
	hook := t.onPush
	err := t.err
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches = append(t.batches, batch)
	return nil
}

func (t *recordingTransport) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *recordingTransport) last() repository.SyncBatch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batches[len(t.batches)-1]
}

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testBillingConfig(freeWaiting int64) BillingConfig {
	return BillingConfig{
		FreeWaitingSeconds: freeWaiting,
		PricePerSecond:     money.MustParseRate("0.05"),
		Currency:           "USD",
	}
}

type meterFixture struct {
	cfg       BillingConfig
	clock     *clock.Manual
	store     *failingStore
	transport *recordingTransport
	meter     *BillingMeter
}

func newMeterFixture(t *testing.T, freeWaiting int64) *meterFixture {
	t.Helper()
	f := &meterFixture{
		cfg:       testBillingConfig(freeWaiting),
		clock:     clock.NewManual(testEpoch),
		store:     newFailingStore(),
		transport: &recordingTransport{},
	}
	f.meter = f.reopen()
	return f
}

// reopen builds a fresh meter over the same store, as after a restart.
func (f *meterFixture) reopen() *BillingMeter {
	return NewBillingMeter(
		repository.ForDriver(f.store, "driver-1"),
		f.clock,
		f.cfg,
		f.transport,
		NewNotificationService(f.clock, logger.Discard()),
		logger.Discard(),
	)
}
