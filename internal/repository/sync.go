package repository

import (
	"context"
	"time"

	"ridemeter/internal/domain"
)

// SyncBatch is what a driver session hands to the backend on sync: its live
// meters and the settled records the backend has not acknowledged yet.
type SyncBatch struct {
	DriverID string                 `json:"driver_id"`
	Live     domain.LiveState       `json:"live"`
	Records  []domain.BillingRecord `json:"records"`
	SentAt   time.Time              `json:"sent_at"`
}

// SyncTransport delivers a batch to the backend. A nil error means the batch
// was acknowledged. Implementations must be idempotent on record ID since a
// batch is resent after any failure.
type SyncTransport interface {
	Push(ctx context.Context, batch SyncBatch) error
}
