package domain

import "ridemeter/internal/money"

// BillingSessionKind selects the free-allowance and rounding policy of a meter.
type BillingSessionKind string

const (
	BillingWaiting   BillingSessionKind = "waiting"
	BillingEmergency BillingSessionKind = "emergency"
)

// BillingKinds lists every meter kind in a stable order.
var BillingKinds = []BillingSessionKind{BillingWaiting, BillingEmergency}

// Valid reports whether k is a known kind.
func (k BillingSessionKind) Valid() bool {
	return k == BillingWaiting || k == BillingEmergency
}

// LiveState holds the start timestamps (epoch milliseconds) of the meters
// that are currently running. A nil slot means the meter is stopped.
type LiveState struct {
	WaitingStartedAt   *int64 `json:"waiting_started_at"`
	EmergencyStartedAt *int64 `json:"emergency_started_at"`
}

// StartedAt returns the start of the kind's meter, if running.
func (s LiveState) StartedAt(kind BillingSessionKind) (int64, bool) {
	var slot *int64
	switch kind {
	case BillingWaiting:
		slot = s.WaitingStartedAt
	case BillingEmergency:
		slot = s.EmergencyStartedAt
	}
	if slot == nil {
		return 0, false
	}
	return *slot, true
}

// Running reports whether the kind's meter is running.
func (s LiveState) Running(kind BillingSessionKind) bool {
	_, ok := s.StartedAt(kind)
	return ok
}

// WithStart returns a copy with the kind's slot set to startedAt.
func (s LiveState) WithStart(kind BillingSessionKind, startedAt int64) LiveState {
	out := s.Clone()
	switch kind {
	case BillingWaiting:
		out.WaitingStartedAt = &startedAt
	case BillingEmergency:
		out.EmergencyStartedAt = &startedAt
	}
	return out
}

// Without returns a copy with the kind's slot cleared.
func (s LiveState) Without(kind BillingSessionKind) LiveState {
	out := s.Clone()
	switch kind {
	case BillingWaiting:
		out.WaitingStartedAt = nil
	case BillingEmergency:
		out.EmergencyStartedAt = nil
	}
	return out
}

// Clone returns a deep copy so callers never alias the meter's slots.
func (s LiveState) Clone() LiveState {
	var out LiveState
	if s.WaitingStartedAt != nil {
		v := *s.WaitingStartedAt
		out.WaitingStartedAt = &v
	}
	if s.EmergencyStartedAt != nil {
		v := *s.EmergencyStartedAt
		out.EmergencyStartedAt = &v
	}
	return out
}

// BillingRecord is an immutable settled interval.
type BillingRecord struct {
	ID             string             `json:"id"`
	Kind           BillingSessionKind `json:"kind"`
	StartedAt      int64              `json:"started_at"`
	EndedAt        int64              `json:"ended_at"`
	ChargedSeconds int64              `json:"charged_seconds"`
	Amount         money.Money        `json:"amount"`
	Currency       string             `json:"currency"`
}
