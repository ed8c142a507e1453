package service

import (
	"ridemeter/internal/domain"
)

// Presentation holds view-only settings that never affect which events are
// legal.
type Presentation struct {
	ButtonsSwapped bool
}

var (
	actionGoOnline     = domain.ActionView{Action: "go_online", Icon: "power", Tone: "positive"}
	actionStartTrip    = domain.ActionView{Action: "start_trip", Icon: "play", Tone: "positive"}
	actionCompleteTrip = domain.ActionView{Action: "complete_trip", Icon: "flag", Tone: "positive"}
	actionCancelTrip   = domain.ActionView{Action: "cancel_trip", Icon: "close", Tone: "negative"}
	actionContinueTrip = domain.ActionView{Action: "continue_trip", Icon: "play", Tone: "warning"}
	actionForceEnd     = domain.ActionView{Action: "end_trip", Icon: "stop", Tone: "danger"}
	actionSubmitRating = domain.ActionView{Action: "submit_rating", Icon: "star", Tone: "positive"}
	actionSkipRating   = domain.ActionView{Action: "skip_rating", Icon: "skip", Tone: "neutral"}
	actionEmergStop    = domain.ActionView{Action: "emergency_stop", Icon: "pause", Tone: "warning"}
	actionEmergEnd     = domain.ActionView{Action: "emergency_end", Icon: "stop", Tone: "danger"}
)

// viewInput is everything projectView needs; it holds no references to
// live objects.
type viewInput struct {
	DriverID     string
	Trip         TripView
	Live         domain.LiveState
	Now          int64
	Billing      BillingConfig
	Presentation Presentation
}

// projectView computes the ViewState for one instant. It is pure.
func projectView(in viewInput) domain.ViewState {
	v := domain.ViewState{
		DriverID:       in.DriverID,
		State:          in.Trip.State,
		Controls:       in.Trip.Controls,
		ButtonsSwapped: in.Presentation.ButtonsSwapped,
		MenuOpen:       in.Trip.MenuOpen,
		EmergencyUsed:  in.Trip.EmergencyUsed,
		ActiveMeter:    activeMeter(in.Live, in.Now, in.Billing),
		GeneratedAt:    in.Now,
	}

	primary, secondary := actionsFor(in.Trip)
	if in.Presentation.ButtonsSwapped && secondary != nil {
		primary, *secondary = *secondary, primary
	}
	v.Primary = primary
	v.Secondary = secondary

	if in.Trip.MenuOpen {
		v.MenuOptions = []domain.EmergencyActionKind{domain.EmergencyActionStop, domain.EmergencyActionEnd}
	}
	if in.Trip.TripStartedAt != nil {
		v.TripElapsedSeconds = elapsedSeconds(*in.Trip.TripStartedAt, in.Now)
	}
	return v
}

func actionsFor(t TripView) (domain.ActionView, *domain.ActionView) {
	ptr := func(a domain.ActionView) *domain.ActionView { return &a }

	if t.MenuOpen {
		return actionEmergStop, ptr(actionEmergEnd)
	}

	switch t.State.State() {
	case domain.TripAwaitingClient:
		return actionStartTrip, ptr(actionCancelTrip)
	case domain.TripOnTrip:
		return actionCompleteTrip, ptr(actionCancelTrip)
	case domain.TripEmergency:
		// Active is never entered; it is shown the same as Paused.
		return actionContinueTrip, ptr(actionForceEnd)
	case domain.TripComplete:
		return actionSubmitRating, ptr(actionSkipRating)
	default:
		return actionGoOnline, nil
	}
}

// activeMeter describes the ticking meter. Emergency wins if both slots are
// somehow set.
func activeMeter(live domain.LiveState, now int64, cfg BillingConfig) *domain.MeterView {
	for _, kind := range []domain.BillingSessionKind{domain.BillingEmergency, domain.BillingWaiting} {
		startedAt, ok := live.StartedAt(kind)
		if !ok {
			continue
		}
		elapsed := elapsedSeconds(startedAt, now)
		mv := &domain.MeterView{
			Kind:            kind,
			StartedAt:       startedAt,
			ElapsedSeconds:  elapsed,
			BillableSeconds: cfg.ChargedSeconds(kind, elapsed),
		}
		if kind == domain.BillingWaiting {
			mv.FreeSecondsLeft = max(0, cfg.FreeWaitingSeconds-elapsed)
		}
		return mv
	}
	return nil
}
