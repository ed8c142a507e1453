package postgres

import (
	"context"
	"database/sql"
	"time"

	"ridemeter/internal/domain"
	"ridemeter/internal/repository"
)

// BillingSink is a PostgreSQL implementation of repository.SyncTransport.
// It writes the live meters and settled records of a batch in one transaction.
type BillingSink struct {
	db *sql.DB
}

// NewBillingSink creates a new PostgreSQL billing sink.
func NewBillingSink(db *sql.DB) *BillingSink {
	return &BillingSink{db: db}
}

// Push stores the batch. Records already present are left untouched.
func (s *BillingSink) Push(ctx context.Context, batch repository.SyncBatch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsertLiveMeters(ctx, tx, batch); err != nil {
		return err
	}

	for _, rec := range batch.Records {
		if err = insertRecord(ctx, tx, batch.DriverID, rec); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func upsertLiveMeters(ctx context.Context, q Querier, batch repository.SyncBatch) error {
	query := `
		INSERT INTO driver_live_meters (driver_id, waiting_started_at, emergency_started_at, synced_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (driver_id) DO UPDATE
		SET waiting_started_at = EXCLUDED.waiting_started_at,
		    emergency_started_at = EXCLUDED.emergency_started_at,
		    synced_at = EXCLUDED.synced_at
	`

	_, err := q.ExecContext(ctx, query,
		batch.DriverID,
		nullMillis(batch.Live.WaitingStartedAt),
		nullMillis(batch.Live.EmergencyStartedAt),
		batch.SentAt,
	)
	return err
}

func insertRecord(ctx context.Context, q Querier, driverID string, rec domain.BillingRecord) error {
	query := `
		INSERT INTO billing_records (id, driver_id, kind, started_at, ended_at, charged_seconds, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := q.ExecContext(ctx, query,
		rec.ID,
		driverID,
		string(rec.Kind),
		time.UnixMilli(rec.StartedAt).UTC(),
		time.UnixMilli(rec.EndedAt).UTC(),
		rec.ChargedSeconds,
		rec.Amount.String(),
		rec.Currency,
	)
	return err
}

func nullMillis(ms *int64) sql.NullTime {
	if ms == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: time.UnixMilli(*ms).UTC(), Valid: true}
}

var _ repository.SyncTransport = (*BillingSink)(nil)
