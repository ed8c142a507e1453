package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
)

// ApplyResult is returned by SessionFacade.Apply.
type ApplyResult struct {
	Changed bool                   `json:"changed"`
	Settled []domain.BillingRecord `json:"settled,omitempty"`
	View    domain.ViewState       `json:"view"`
}

// SessionFacade is the single entry point for one driver's session. It
// serializes events and ticks so that each sees a consistent state.
type SessionFacade struct {
	mu           sync.Mutex
	driverID     string
	trip         *TripStateMachine
	meter        *BillingMeter
	clock        clock.Clock
	presentation Presentation
	logger       *slog.Logger
}

// NewSessionFacade wires a facade over an existing machine and meter.
func NewSessionFacade(
	driverID string,
	trip *TripStateMachine,
	meter *BillingMeter,
	clk clock.Clock,
	presentation Presentation,
	logger *slog.Logger,
) *SessionFacade {
	return &SessionFacade{
		driverID:     driverID,
		trip:         trip,
		meter:        meter,
		clock:        clk,
		presentation: presentation,
		logger:       logger.With("driver_id", driverID),
	}
}

// DriverID returns the driver the session belongs to.
func (f *SessionFacade) DriverID() string {
	return f.driverID
}

// Billing exposes the session's meter for ledger reads and sync.
func (f *SessionFacade) Billing() *BillingMeter {
	return f.meter
}

// Apply applies ev and returns the freshly projected view. When a durable
// write fails the error is returned together with the in-memory result,
// which is authoritative.
func (f *SessionFacade) Apply(ctx context.Context, ev domain.Event) (ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tr, applyErr := f.trip.Apply(ctx, ev)
	view, viewErr := f.view(ctx)
	if view.State.IsZero() && applyErr != nil {
		return ApplyResult{}, applyErr
	}

	return ApplyResult{
		Changed: tr.Changed,
		Settled: tr.Settled,
		View:    view,
	}, errors.Join(applyErr, viewErr)
}

// ApplyNamed parses name and applies it. Unknown names return
// ErrUnknownEvent.
func (f *SessionFacade) ApplyNamed(ctx context.Context, name string) (ApplyResult, error) {
	ev, ok := domain.ParseEvent(name)
	if !ok {
		return ApplyResult{}, ErrUnknownEvent
	}
	return f.Apply(ctx, ev)
}

// View recomputes the view for the current instant. It is the periodic
// tick used for live elapsed-time display.
func (f *SessionFacade) View(ctx context.Context) (domain.ViewState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view(ctx)
}

func (f *SessionFacade) view(ctx context.Context) (domain.ViewState, error) {
	tv, err := f.trip.View(ctx)
	if err != nil {
		return domain.ViewState{}, err
	}
	live, err := f.meter.LiveState(ctx)
	if err != nil {
		return domain.ViewState{}, err
	}

	return projectView(viewInput{
		DriverID:     f.driverID,
		Trip:         tv,
		Live:         live,
		Now:          f.clock.Now().UnixMilli(),
		Billing:      f.meter.Config(),
		Presentation: f.presentation,
	}), nil
}
