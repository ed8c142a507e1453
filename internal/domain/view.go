package domain

// ActionView describes how a control should be presented. Keys are resolved
// to icons, colours and localized labels by the UI.
type ActionView struct {
	Action string `json:"action"`
	Icon   string `json:"icon"`
	Tone   string `json:"tone"`
}

// MeterView describes the meter that is currently ticking.
type MeterView struct {
	Kind            BillingSessionKind `json:"kind"`
	StartedAt       int64              `json:"started_at"`
	ElapsedSeconds  int64              `json:"elapsed_seconds"`
	FreeSecondsLeft int64              `json:"free_seconds_left"`
	BillableSeconds int64              `json:"billable_seconds"`
}

// ViewState is the plain description of a driver session handed to the UI.
type ViewState struct {
	DriverID           string                `json:"driver_id"`
	State              OperatingState        `json:"state"`
	Controls           Controls              `json:"controls"`
	Primary            ActionView            `json:"primary"`
	Secondary          *ActionView           `json:"secondary,omitempty"`
	ButtonsSwapped     bool                  `json:"buttons_swapped"`
	MenuOpen           bool                  `json:"menu_open"`
	MenuOptions        []EmergencyActionKind `json:"menu_options,omitempty"`
	EmergencyUsed      EmergencyActionKind   `json:"emergency_used,omitempty"`
	ActiveMeter        *MeterView            `json:"active_meter,omitempty"`
	TripElapsedSeconds int64                 `json:"trip_elapsed_seconds"`
	GeneratedAt        int64                 `json:"generated_at"`
}
