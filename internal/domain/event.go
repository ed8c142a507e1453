package domain

// Event is a discrete input resolved by the UI from a user gesture.
type Event string

const (
	EventConfirm       Event = "confirm"
	EventCancel        Event = "cancel"
	EventLongPress     Event = "long_press"
	EventEmergencyStop Event = "emergency_stop"
	EventEmergencyEnd  Event = "emergency_end"
	EventDismissMenu   Event = "dismiss_menu"
	EventForceEnd      Event = "force_end"
	EventWaitStart     Event = "wait_start"
	EventWaitStop      Event = "wait_stop"
)

var knownEvents = map[Event]struct{}{
	EventConfirm:       {},
	EventCancel:        {},
	EventLongPress:     {},
	EventEmergencyStop: {},
	EventEmergencyEnd:  {},
	EventDismissMenu:   {},
	EventForceEnd:      {},
	EventWaitStart:     {},
	EventWaitStop:      {},
}

// ParseEvent maps a wire name to an Event.
func ParseEvent(s string) (Event, bool) {
	ev := Event(s)
	_, ok := knownEvents[ev]
	return ev, ok
}

// Controls is the legality predicate for the current state: an event whose
// flag is false is ignored when applied.
type Controls struct {
	Confirm       bool `json:"confirm"`
	Cancel        bool `json:"cancel"`
	LongPress     bool `json:"long_press"`
	EmergencyStop bool `json:"emergency_stop"`
	EmergencyEnd  bool `json:"emergency_end"`
	DismissMenu   bool `json:"dismiss_menu"`
	ForceEnd      bool `json:"force_end"`
	WaitStart     bool `json:"wait_start"`
	WaitStop      bool `json:"wait_stop"`
}

// Allows reports whether ev is currently enabled.
func (c Controls) Allows(ev Event) bool {
	switch ev {
	case EventConfirm:
		return c.Confirm
	case EventCancel:
		return c.Cancel
	case EventLongPress:
		return c.LongPress
	case EventEmergencyStop:
		return c.EmergencyStop
	case EventEmergencyEnd:
		return c.EmergencyEnd
	case EventDismissMenu:
		return c.DismissMenu
	case EventForceEnd:
		return c.ForceEnd
	case EventWaitStart:
		return c.WaitStart
	case EventWaitStop:
		return c.WaitStop
	default:
		return false
	}
}
