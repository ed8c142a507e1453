package domain

import (
	"time"

	"ridemeter/internal/money"
)

// KindTotal aggregates the settled records of one billing kind.
type KindTotal struct {
	Kind           BillingSessionKind `json:"kind"`
	Count          int                `json:"count"`
	ChargedSeconds int64              `json:"charged_seconds"`
	Amount         money.Money        `json:"amount"`
}

// LedgerSummary is a receipt over a driver's ledger.
type LedgerSummary struct {
	ID             string      `json:"id"`
	DriverID       string      `json:"driver_id"`
	Currency       string      `json:"currency"`
	Kinds          []KindTotal `json:"kinds"`
	Count          int         `json:"count"`
	ChargedSeconds int64       `json:"charged_seconds"`
	Total          money.Money `json:"total"`
	FirstStartedAt int64       `json:"first_started_at,omitempty"`
	LastEndedAt    int64       `json:"last_ended_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
