package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
	"ridemeter/internal/money"
	"ridemeter/internal/repository"
)

// BillingConfig holds the tunable billing constants.
type BillingConfig struct {
	FreeWaitingSeconds int64
	PricePerSecond     money.Rate
	Currency           string
}

// Validate checks the constants.
func (c BillingConfig) Validate() error {
	if c.FreeWaitingSeconds < 0 {
		return fmt.Errorf("%w: free waiting seconds must not be negative", ErrInvalidBillingConfig)
	}
	if c.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidBillingConfig)
	}
	return nil
}

// ChargedSeconds applies the kind's free allowance to elapsed seconds.
func (c BillingConfig) ChargedSeconds(kind domain.BillingSessionKind, elapsedSeconds int64) int64 {
	if elapsedSeconds < 0 {
		return 0
	}
	if kind == domain.BillingWaiting {
		return max(0, elapsedSeconds-c.FreeWaitingSeconds)
	}
	return elapsedSeconds
}

// elapsedSeconds converts a millisecond interval to whole seconds, rounding
// down and clamping at zero.
func elapsedSeconds(startedAt, now int64) int64 {
	if now <= startedAt {
		return 0
	}
	return (now - startedAt) / 1000
}

// BillingMeter owns the waiting and emergency meters of one driver session
// and its ledger of settled records.
type BillingMeter struct {
	mu        sync.Mutex
	store     *repository.SessionStore
	clock     clock.Clock
	cfg       BillingConfig
	transport repository.SyncTransport
	notifier  *NotificationService
	logger    *slog.Logger

	loaded     bool
	live       domain.LiveState
	records    []domain.BillingRecord
	syncCursor int
	generation int
}

// NewBillingMeter creates a BillingMeter. transport and notifier may be nil.
func NewBillingMeter(
	store *repository.SessionStore,
	clk clock.Clock,
	cfg BillingConfig,
	transport repository.SyncTransport,
	notifier *NotificationService,
	logger *slog.Logger,
) *BillingMeter {
	return &BillingMeter{
		store:     store,
		clock:     clk,
		cfg:       cfg,
		transport: transport,
		notifier:  notifier,
		logger:    logger.With("driver_id", store.DriverID()),
	}
}

// Config returns the billing constants in use.
func (m *BillingMeter) Config() BillingConfig {
	return m.cfg
}

// Start starts the kind's meter. Starting a running meter is a no-op.
func (m *BillingMeter) Start(ctx context.Context, kind domain.BillingSessionKind) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return err
	}

	if m.live.Running(kind) {
		return nil
	}

	// reconcile matches live slots to records by start time, so no two
	// intervals of a kind may share one.
	now := m.clock.Now().UnixMilli()
	for m.settled(kind, now) {
		now++
	}
	m.live = m.live.WithStart(kind, now)
	m.logger.Info("meter started", "kind", kind, "started_at", now)

	return m.saveLive(ctx)
}

// Stop settles the kind's meter and appends the record to the ledger.
// It returns nil, nil when the meter is not running. On a persistence
// failure the record is still returned together with the error: the
// settlement has happened in memory.
func (m *BillingMeter) Stop(ctx context.Context, kind domain.BillingSessionKind) (*domain.BillingRecord, error) {
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return nil, err
	}

	startedAt, ok := m.live.StartedAt(kind)
	if !ok {
		return nil, nil
	}

	endedAt := max(m.clock.Now().UnixMilli(), startedAt)
	charged := m.cfg.ChargedSeconds(kind, elapsedSeconds(startedAt, endedAt))

	rec := domain.BillingRecord{
		ID:             uuid.New().String(),
		Kind:           kind,
		StartedAt:      startedAt,
		EndedAt:        endedAt,
		ChargedSeconds: charged,
		Amount:         m.cfg.PricePerSecond.Charge(charged),
		Currency:       m.cfg.Currency,
	}

	m.records = append(m.records, rec)
	m.live = m.live.Without(kind)

	m.logger.Info("meter settled",
		"kind", kind,
		"record_id", rec.ID,
		"charged_seconds", rec.ChargedSeconds,
		"amount", rec.Amount.String(),
	)
	if m.notifier != nil {
		m.notifier.NotifySettlement(ctx, m.store.DriverID(), rec)
	}

	// Ledger first: if the process dies before the live state is written,
	// load() finds the settled record and clears the stale slot.
	if err := m.saveLedger(ctx); err != nil {
		return &rec, err
	}
	return &rec, m.saveLive(ctx)
}

func (m *BillingMeter) StartWaiting(ctx context.Context) error {
	return m.Start(ctx, domain.BillingWaiting)
}

func (m *BillingMeter) StopWaiting(ctx context.Context) (*domain.BillingRecord, error) {
	return m.Stop(ctx, domain.BillingWaiting)
}

func (m *BillingMeter) StartEmergency(ctx context.Context) error {
	return m.Start(ctx, domain.BillingEmergency)
}

func (m *BillingMeter) StopEmergency(ctx context.Context) (*domain.BillingRecord, error) {
	return m.Stop(ctx, domain.BillingEmergency)
}

// StopAll settles every running meter.
func (m *BillingMeter) StopAll(ctx context.Context) ([]domain.BillingRecord, error) {
	var settled []domain.BillingRecord
	var errs []error
	for _, kind := range domain.BillingKinds {
		rec, err := m.Stop(ctx, kind)
		if rec != nil {
			settled = append(settled, *rec)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return settled, errors.Join(errs...)
}

// LiveState returns a copy of the running meters.
func (m *BillingMeter) LiveState(ctx context.Context) (domain.LiveState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return domain.LiveState{}, err
	}
	return m.live.Clone(), nil
}

// Records returns the ledger in insertion order.
func (m *BillingMeter) Records(ctx context.Context) ([]domain.BillingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.BillingRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// ClearRecords empties the ledger. Live meters are untouched.
func (m *BillingMeter) ClearRecords(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		return err
	}

	m.records = nil
	m.syncCursor = 0
	m.generation++
	m.logger.Warn("ledger cleared")

	return errors.Join(m.saveLedger(ctx), m.saveCursor(ctx))
}

// SyncWithBackend hands the live state and the records the backend has not
// acknowledged to the transport. It returns false on any failure, in which
// case nothing local is changed and the same records go out next time.
func (m *BillingMeter) SyncWithBackend(ctx context.Context) bool {
	if m.transport == nil {
		m.logger.Debug("sync skipped: no transport configured")
		return false
	}

	m.mu.Lock()
	if err := m.load(ctx); err != nil {
		m.mu.Unlock()
		m.logger.Error("sync aborted: load failed", "error", err)
		return false
	}
	pending := make([]domain.BillingRecord, len(m.records)-m.syncCursor)
	copy(pending, m.records[m.syncCursor:])
	batch := repository.SyncBatch{
		DriverID: m.store.DriverID(),
		Live:     m.live.Clone(),
		Records:  pending,
		SentAt:   m.clock.Now().UTC(),
	}
	generation := m.generation
	m.mu.Unlock()

	if err := m.transport.Push(ctx, batch); err != nil {
		m.logger.Warn("sync failed", "pending", len(pending), "error", err)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// A clear during the push invalidates the cursor we were about to move.
	if generation == m.generation {
		m.syncCursor = min(m.syncCursor+len(pending), len(m.records))
		if err := m.saveCursor(ctx); err != nil {
			m.logger.Warn("sync cursor not persisted; records will be resent", "error", err)
		}
	}

	m.logger.Info("sync completed", "records", len(pending))
	return true
}

// load reads the session's billing state on first access. Caller holds mu.
func (m *BillingMeter) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	var live domain.LiveState
	if err := m.read(ctx, repository.KeyLiveState, &live); err != nil {
		return err
	}

	var records []domain.BillingRecord
	if err := m.read(ctx, repository.KeyLedger, &records); err != nil {
		return err
	}

	cursor := 0
	raw, ok, err := m.store.Get(ctx, repository.KeySyncCursor)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, repository.KeySyncCursor, err)
	}
	if ok {
		if cursor, err = strconv.Atoi(string(raw)); err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrPersistence, repository.KeySyncCursor, err)
		}
	}

	m.live = live
	m.records = records
	m.syncCursor = min(max(cursor, 0), len(records))
	m.loaded = true

	return m.reconcile(ctx)
}

// reconcile clears a live slot whose interval is already in the ledger,
// which happens when a crash interrupts Stop between its two writes.
func (m *BillingMeter) reconcile(ctx context.Context) error {
	stale := false
	for _, kind := range domain.BillingKinds {
		startedAt, ok := m.live.StartedAt(kind)
		if !ok {
			continue
		}
		if m.settled(kind, startedAt) {
			m.logger.Warn("clearing meter already settled before restart", "kind", kind, "started_at", startedAt)
			m.live = m.live.Without(kind)
			stale = true
		}
	}
	if !stale {
		return nil
	}
	return m.saveLive(ctx)
}

// settled reports whether the ledger holds a record of kind that started at
// startedAt. Caller holds mu.
func (m *BillingMeter) settled(kind domain.BillingSessionKind, startedAt int64) bool {
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Kind == kind && m.records[i].StartedAt == startedAt {
			return true
		}
	}
	return false
}

func (m *BillingMeter) read(ctx context.Context, key string, dst any) error {
	raw, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, key, err)
	}
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrPersistence, key, err)
	}
	return nil
}

func (m *BillingMeter) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, key, err)
	}
	if err := m.store.Set(ctx, key, data); err != nil {
		m.logger.Error("durable write failed", "key", key, "error", err)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, key, err)
	}
	return nil
}

func (m *BillingMeter) saveLive(ctx context.Context) error {
	return m.write(ctx, repository.KeyLiveState, m.live)
}

func (m *BillingMeter) saveLedger(ctx context.Context) error {
	records := m.records
	if records == nil {
		records = []domain.BillingRecord{}
	}
	return m.write(ctx, repository.KeyLedger, records)
}

func (m *BillingMeter) saveCursor(ctx context.Context) error {
	if err := m.store.Set(ctx, repository.KeySyncCursor, []byte(strconv.Itoa(m.syncCursor))); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, repository.KeySyncCursor, err)
	}
	return nil
}
