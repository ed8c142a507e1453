package domain

import (
	"encoding/json"
	"fmt"
)

// TripState is the top-level operating state of a driver's assignment.
type TripState string

const (
	TripIdle           TripState = "idle"
	TripAwaitingClient TripState = "awaiting_client"
	TripOnTrip         TripState = "on_trip"
	TripComplete       TripState = "trip_complete"
	TripEmergency      TripState = "emergency"
)

// EmergencySubstate refines TripEmergency.
type EmergencySubstate string

const (
	EmergencyActive EmergencySubstate = "active"
	EmergencyPaused EmergencySubstate = "paused"
)

// EmergencyActionKind records which one-shot emergency action a trip used.
// The zero value means none has been taken yet.
type EmergencyActionKind string

const (
	EmergencyActionNone EmergencyActionKind = ""
	EmergencyActionStop EmergencyActionKind = "stop"
	EmergencyActionEnd  EmergencyActionKind = "end"
)

// OperatingState is a tagged union: the substate is only present for
// TripEmergency. Construct it through the helpers below.
type OperatingState struct {
	state     TripState
	emergency EmergencySubstate
}

func Idle() OperatingState { return OperatingState{state: TripIdle} }
func AwaitingClient() OperatingState { return OperatingState{state: TripAwaitingClient} }
func OnTrip() OperatingState { return OperatingState{state: TripOnTrip} }
func Complete() OperatingState { return OperatingState{state: TripComplete} }

// InEmergency builds the emergency state with the given substate.
func InEmergency(sub EmergencySubstate) OperatingState {
	return OperatingState{state: TripEmergency, emergency: sub}
}

func (s OperatingState) State() TripState { return s.state }

// Substate returns the emergency substate and whether the state is an emergency.
func (s OperatingState) Substate() (EmergencySubstate, bool) {
	return s.emergency, s.state == TripEmergency
}

// IsEmergency reports whether s is TripEmergency with any substate.
func (s OperatingState) IsEmergency() bool {
	return s.state == TripEmergency
}

// IsZero reports whether s was never initialised.
func (s OperatingState) IsZero() bool {
	return s.state == ""
}

func (s OperatingState) String() string {
	if s.state == TripEmergency {
		return fmt.Sprintf("%s(%s)", s.state, s.emergency)
	}
	return string(s.state)
}

type operatingStateJSON struct {
	State     TripState         `json:"state"`
	Emergency EmergencySubstate `json:"emergency,omitempty"`
}

func (s OperatingState) MarshalJSON() ([]byte, error) {
	return json.Marshal(operatingStateJSON{State: s.state, Emergency: s.emergency})
}

// UnmarshalJSON rejects combinations the union cannot represent.
func (s *OperatingState) UnmarshalJSON(data []byte) error {
	var raw operatingStateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseOperatingState(raw.State, raw.Emergency)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseOperatingState validates a (state, substate) pair.
func ParseOperatingState(state TripState, sub EmergencySubstate) (OperatingState, error) {
	switch state {
	case "":
		if sub != "" {
			return OperatingState{}, fmt.Errorf("emergency substate %q without state", sub)
		}
		return OperatingState{}, nil
	case TripIdle, TripAwaitingClient, TripOnTrip, TripComplete:
		if sub != "" {
			return OperatingState{}, fmt.Errorf("emergency substate %q not allowed in %s", sub, state)
		}
		return OperatingState{state: state}, nil
	case TripEmergency:
		if sub != EmergencyActive && sub != EmergencyPaused {
			return OperatingState{}, fmt.Errorf("invalid emergency substate %q", sub)
		}
		return InEmergency(sub), nil
	default:
		return OperatingState{}, fmt.Errorf("unknown trip state %q", state)
	}
}
