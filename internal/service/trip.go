package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
	"ridemeter/internal/repository"
)

// tripSnapshot is the persisted part of the trip state. The emergency menu
// is transient and not persisted.
type tripSnapshot struct {
	State         domain.OperatingState      `json:"state"`
	ResumeTo      domain.OperatingState      `json:"resume_to"`
	EmergencyUsed domain.EmergencyActionKind `json:"emergency_used,omitempty"`
	TripStartedAt *int64                     `json:"trip_started_at,omitempty"`
}

// TripView is a read-only copy of the machine's state for projection.
type TripView struct {
	State         domain.OperatingState
	Controls      domain.Controls
	MenuOpen      bool
	EmergencyUsed domain.EmergencyActionKind
	TripStartedAt *int64
}

// TransitionResult describes what an applied event did.
type TransitionResult struct {
	Changed bool
	From    domain.OperatingState
	To      domain.OperatingState
	Settled []domain.BillingRecord
}

// TripStateMachine owns a driver's operating state and drives the billing
// meter on the transitions that start or settle metered time. It is not
// safe for concurrent use; SessionFacade serializes access.
type TripStateMachine struct {
	meter    *BillingMeter
	store    *repository.SessionStore
	clock    clock.Clock
	notifier *NotificationService
	logger   *slog.Logger

	loaded   bool
	snap     tripSnapshot
	menuOpen bool
}

// NewTripStateMachine creates a TripStateMachine starting in Idle unless a
// snapshot exists in the store. notifier may be nil.
func NewTripStateMachine(
	meter *BillingMeter,
	store *repository.SessionStore,
	clk clock.Clock,
	notifier *NotificationService,
	logger *slog.Logger,
) *TripStateMachine {
	return &TripStateMachine{
		meter:    meter,
		store:    store,
		clock:    clk,
		notifier: notifier,
		logger:   logger.With("driver_id", store.DriverID()),
	}
}

// State returns the current operating state.
func (m *TripStateMachine) State(ctx context.Context) (domain.OperatingState, error) {
	if err := m.load(ctx); err != nil {
		return domain.OperatingState{}, err
	}
	return m.snap.State, nil
}

// View returns the state together with the legality predicate.
func (m *TripStateMachine) View(ctx context.Context) (TripView, error) {
	if err := m.load(ctx); err != nil {
		return TripView{}, err
	}
	live, err := m.meter.LiveState(ctx)
	if err != nil {
		return TripView{}, err
	}

	view := TripView{
		State:         m.snap.State,
		Controls:      m.controls(live),
		MenuOpen:      m.menuOpen,
		EmergencyUsed: m.snap.EmergencyUsed,
	}
	if m.snap.TripStartedAt != nil {
		v := *m.snap.TripStartedAt
		view.TripStartedAt = &v
	}
	return view, nil
}

// Controls returns which events are currently enabled.
func (m *TripStateMachine) Controls(ctx context.Context) (domain.Controls, error) {
	view, err := m.View(ctx)
	if err != nil {
		return domain.Controls{}, err
	}
	return view.Controls, nil
}

func (m *TripStateMachine) controls(live domain.LiveState) domain.Controls {
	var c domain.Controls

	if m.menuOpen {
		c.EmergencyStop = true
		c.EmergencyEnd = true
		c.DismissMenu = true
		return c
	}

	emergencyAvailable := m.snap.EmergencyUsed == domain.EmergencyActionNone

	switch m.snap.State.State() {
	case domain.TripIdle:
		c.Confirm = true
	case domain.TripAwaitingClient:
		c.Confirm = true
		c.Cancel = true
		c.LongPress = emergencyAvailable
	case domain.TripOnTrip:
		c.Confirm = true
		c.Cancel = true
		c.LongPress = emergencyAvailable
		c.WaitStart = !live.Running(domain.BillingWaiting)
		c.WaitStop = live.Running(domain.BillingWaiting)
	case domain.TripEmergency:
		c.Confirm = true
		c.ForceEnd = true
	case domain.TripComplete:
		c.Confirm = true
		c.Cancel = true
	}
	return c
}

// Apply applies ev. A disabled event is ignored and reported with
// Changed=false. Meter and persistence failures are returned after the
// transition has been applied in memory.
func (m *TripStateMachine) Apply(ctx context.Context, ev domain.Event) (TransitionResult, error) {
	if err := m.load(ctx); err != nil {
		return TransitionResult{}, err
	}
	live, err := m.meter.LiveState(ctx)
	if err != nil {
		return TransitionResult{}, err
	}

	from := m.snap.State
	res := TransitionResult{From: from, To: from}
	if !m.controls(live).Allows(ev) {
		m.logger.Debug("event ignored", "event", ev, "state", from.String())
		return res, nil
	}

	prev := m.snap
	var errs []error
	settle := func(kind domain.BillingSessionKind) {
		rec, err := m.meter.Stop(ctx, kind)
		if rec != nil {
			res.Settled = append(res.Settled, *rec)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	start := func(kind domain.BillingSessionKind) {
		if err := m.meter.Start(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}

	switch ev {
	case domain.EventConfirm:
		m.confirm(settle)
	case domain.EventCancel:
		if from.State() == domain.TripOnTrip {
			settle(domain.BillingWaiting)
		}
		m.snap.State = domain.Idle()
		m.snap.TripStartedAt = nil
	case domain.EventLongPress:
		m.menuOpen = true
	case domain.EventDismissMenu:
		m.menuOpen = false
	case domain.EventEmergencyStop:
		m.menuOpen = false
		settle(domain.BillingWaiting)
		start(domain.BillingEmergency)
		m.snap.ResumeTo = from
		m.snap.State = domain.InEmergency(domain.EmergencyPaused)
		m.snap.EmergencyUsed = domain.EmergencyActionStop
		m.notifyEmergency(ctx, domain.EmergencyActionStop)
	case domain.EventEmergencyEnd:
		m.menuOpen = false
		settle(domain.BillingWaiting)
		settle(domain.BillingEmergency)
		m.snap.State = domain.Complete()
		m.snap.EmergencyUsed = domain.EmergencyActionEnd
		m.notifyEmergency(ctx, domain.EmergencyActionEnd)
	case domain.EventForceEnd:
		settle(domain.BillingEmergency)
		m.snap.State = domain.Complete()
		m.snap.ResumeTo = domain.OperatingState{}
	case domain.EventWaitStart:
		start(domain.BillingWaiting)
	case domain.EventWaitStop:
		settle(domain.BillingWaiting)
	}

	res.Changed = true
	res.To = m.snap.State

	if m.snap != prev {
		if err := m.save(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	m.logger.Info("event applied",
		"event", ev,
		"from", from.String(),
		"to", res.To.String(),
		"settled", len(res.Settled),
	)
	return res, errors.Join(errs...)
}

func (m *TripStateMachine) confirm(settle func(domain.BillingSessionKind)) {
	switch m.snap.State.State() {
	case domain.TripIdle:
		// A new trip begins: the one-shot emergency flag resets here only.
		m.snap = tripSnapshot{State: domain.AwaitingClient()}
	case domain.TripAwaitingClient:
		now := m.clock.Now().UnixMilli()
		m.snap.State = domain.OnTrip()
		m.snap.TripStartedAt = &now
	case domain.TripOnTrip:
		settle(domain.BillingWaiting)
		m.snap.State = domain.Complete()
	case domain.TripEmergency:
		settle(domain.BillingEmergency)
		m.snap.State = m.snap.ResumeTo
		m.snap.ResumeTo = domain.OperatingState{}
	case domain.TripComplete:
		m.snap.State = domain.Idle()
		m.snap.TripStartedAt = nil
	}
}

func (m *TripStateMachine) notifyEmergency(ctx context.Context, action domain.EmergencyActionKind) {
	m.logger.Warn("emergency action", "action", action)
	if m.notifier != nil {
		m.notifier.NotifyEmergency(ctx, m.store.DriverID(), action)
	}
}

func (m *TripStateMachine) load(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	raw, ok, err := m.store.Get(ctx, repository.KeyTrip)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPersistence, repository.KeyTrip, err)
	}

	snap := tripSnapshot{State: domain.Idle()}
	if ok {
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("%w: decode %s: %w", ErrPersistence, repository.KeyTrip, err)
		}
		if snap.State.IsZero() {
			snap.State = domain.Idle()
		}
	}

	m.snap = snap
	m.loaded = true
	return m.reconcile(ctx)
}

// reconcile repairs a snapshot that disagrees with the running meters,
// which happens when a transition is interrupted between the meter write
// and the snapshot write. A running emergency meter during a trip means the
// emergency stop happened; outside a trip, and for a waiting meter outside
// OnTrip, the meter is settled.
func (m *TripStateMachine) reconcile(ctx context.Context) error {
	live, err := m.meter.LiveState(ctx)
	if err != nil {
		return err
	}

	prev := m.snap
	var errs []error
	settle := func(kind domain.BillingSessionKind) {
		if _, err := m.meter.Stop(ctx, kind); err != nil {
			errs = append(errs, err)
		}
	}

	if live.Running(domain.BillingEmergency) && !m.snap.State.IsEmergency() {
		switch m.snap.State.State() {
		case domain.TripAwaitingClient, domain.TripOnTrip:
			m.logger.Warn("restoring interrupted emergency stop", "resume_to", m.snap.State.String())
			m.snap.ResumeTo = m.snap.State
			m.snap.State = domain.InEmergency(domain.EmergencyPaused)
			m.snap.EmergencyUsed = domain.EmergencyActionStop
		default:
			m.logger.Warn("settling emergency meter running outside a trip", "state", m.snap.State.String())
			settle(domain.BillingEmergency)
		}
	}
	if live.Running(domain.BillingWaiting) && m.snap.State.State() != domain.TripOnTrip {
		m.logger.Warn("settling waiting meter running outside OnTrip", "state", m.snap.State.String())
		settle(domain.BillingWaiting)
	}

	if m.snap != prev {
		if err := m.save(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *TripStateMachine) save(ctx context.Context) error {
	data, err := json.Marshal(m.snap)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, repository.KeyTrip, err)
	}
	if err := m.store.Set(ctx, repository.KeyTrip, data); err != nil {
		m.logger.Error("durable write failed", "key", repository.KeyTrip, "error", err)
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, repository.KeyTrip, err)
	}
	return nil
}
