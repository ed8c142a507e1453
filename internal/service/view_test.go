package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridemeter/internal/domain"
)

func TestProjectView_IdleHasSingleAction(t *testing.T) {
	v := projectView(viewInput{
		DriverID: "driver-1",
		Trip:     TripView{State: domain.Idle(), Controls: domain.Controls{Confirm: true}},
		Now:      1_000,
		Billing:  testBillingConfig(30),
	})

	assert.Equal(t, "driver-1", v.DriverID)
	assert.Equal(t, "go_online", v.Primary.Action)
	assert.Nil(t, v.Secondary)
	assert.Nil(t, v.ActiveMeter)
	assert.Equal(t, int64(1_000), v.GeneratedAt)
}

func TestProjectView_WaitingMeterCountsDownAllowance(t *testing.T) {
	start := int64(10_000)
	v := projectView(viewInput{
		Trip:    TripView{State: domain.OnTrip(), TripStartedAt: &start},
		Live:    domain.LiveState{}.WithStart(domain.BillingWaiting, start),
		Now:     start + 12_500,
		Billing: testBillingConfig(30),
	})

	require.NotNil(t, v.ActiveMeter)
	assert.Equal(t, domain.BillingWaiting, v.ActiveMeter.Kind)
	assert.Equal(t, int64(12), v.ActiveMeter.ElapsedSeconds)
	assert.Equal(t, int64(18), v.ActiveMeter.FreeSecondsLeft)
	assert.Equal(t, int64(0), v.ActiveMeter.BillableSeconds)
	assert.Equal(t, int64(12), v.TripElapsedSeconds)
	assert.Equal(t, "complete_trip", v.Primary.Action)
	require.NotNil(t, v.Secondary)
	assert.Equal(t, "cancel_trip", v.Secondary.Action)
}

func TestProjectView_WaitingPastAllowance(t *testing.T) {
	v := projectView(viewInput{
		Trip:    TripView{State: domain.OnTrip()},
		Live:    domain.LiveState{}.WithStart(domain.BillingWaiting, 0),
		Now:     45_000,
		Billing: testBillingConfig(30),
	})

	require.NotNil(t, v.ActiveMeter)
	assert.Equal(t, int64(0), v.ActiveMeter.FreeSecondsLeft)
	assert.Equal(t, int64(15), v.ActiveMeter.BillableSeconds)
}

func TestProjectView_EmergencyMeter(t *testing.T) {
	v := projectView(viewInput{
		Trip:    TripView{State: domain.InEmergency(domain.EmergencyPaused)},
		Live:    domain.LiveState{}.WithStart(domain.BillingEmergency, 0),
		Now:     7_000,
		Billing: testBillingConfig(30),
	})

	require.NotNil(t, v.ActiveMeter)
	assert.Equal(t, domain.BillingEmergency, v.ActiveMeter.Kind)
	assert.Equal(t, int64(7), v.ActiveMeter.BillableSeconds)
	assert.Equal(t, int64(0), v.ActiveMeter.FreeSecondsLeft)
	assert.Equal(t, "continue_trip", v.Primary.Action)
	assert.Equal(t, "end_trip", v.Secondary.Action)
}

func TestProjectView_ActiveEmergencyShownAsPaused(t *testing.T) {
	active := projectView(viewInput{Trip: TripView{State: domain.InEmergency(domain.EmergencyActive)}})
	paused := projectView(viewInput{Trip: TripView{State: domain.InEmergency(domain.EmergencyPaused)}})

	assert.Equal(t, paused.Primary, active.Primary)
	assert.Equal(t, paused.Secondary, active.Secondary)
}

func TestProjectView_MenuOptions(t *testing.T) {
	v := projectView(viewInput{
		Trip: TripView{State: domain.OnTrip(), MenuOpen: true},
	})

	assert.True(t, v.MenuOpen)
	assert.Equal(t, []domain.EmergencyActionKind{domain.EmergencyActionStop, domain.EmergencyActionEnd}, v.MenuOptions)
	assert.Equal(t, "emergency_stop", v.Primary.Action)
}

func TestProjectView_ButtonsSwappedIsPresentationOnly(t *testing.T) {
	in := viewInput{
		Trip: TripView{
			State:    domain.AwaitingClient(),
			Controls: domain.Controls{Confirm: true, Cancel: true, LongPress: true},
		},
	}
	normal := projectView(in)

	in.Presentation.ButtonsSwapped = true
	swapped := projectView(in)

	assert.True(t, swapped.ButtonsSwapped)
	assert.Equal(t, normal.Primary, *swapped.Secondary)
	assert.Equal(t, *normal.Secondary, swapped.Primary)
	assert.Equal(t, normal.Controls, swapped.Controls)

	// Nothing to swap with a single action.
	idle := projectView(viewInput{Trip: TripView{State: domain.Idle()}, Presentation: Presentation{ButtonsSwapped: true}})
	assert.Equal(t, "go_online", idle.Primary.Action)
}
