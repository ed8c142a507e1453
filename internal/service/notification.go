package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ridemeter/internal/clock"
	"ridemeter/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationEmergencyStop NotificationType = "EMERGENCY_STOP"
	NotificationEmergencyEnd  NotificationType = "EMERGENCY_END"
	NotificationMeterSettled  NotificationType = "METER_SETTLED"
)

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Type        NotificationType
	RecipientID string
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService hands session notifications to the delivery channels
// (push, SMS, dispatcher console). Delivery itself is owned by those
// channels; this service only builds and emits the notifications.
type NotificationService struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(clk clock.Clock, logger *slog.Logger) *NotificationService {
	return &NotificationService{clock: clk, logger: logger}
}

// NotifyEmergency tells dispatch that a driver took an emergency action.
func (s *NotificationService) NotifyEmergency(ctx context.Context, driverID string, action domain.EmergencyActionKind) {
	notification := Notification{
		Type:        NotificationEmergencyStop,
		RecipientID: driverID,
		Title:       "Emergency Stop",
		Message:     "Driver stopped the vehicle in an emergency.",
		Data: map[string]any{
			"driver_id": driverID,
			"action":    action,
		},
	}
	if action == domain.EmergencyActionEnd {
		notification.Type = NotificationEmergencyEnd
		notification.Title = "Emergency End"
		notification.Message = "Driver ended the trip in an emergency."
	}
	s.send(ctx, notification)
}

// NotifySettlement tells the driver a meter was settled.
func (s *NotificationService) NotifySettlement(ctx context.Context, driverID string, rec domain.BillingRecord) {
	notification := Notification{
		Type:        NotificationMeterSettled,
		RecipientID: driverID,
		Title:       "Meter Settled",
		Message: fmt.Sprintf("%s time settled: %ds charged, %s %s",
			rec.Kind, rec.ChargedSeconds, rec.Amount.String(), rec.Currency),
		Data: map[string]any{
			"record_id":       rec.ID,
			"kind":            rec.Kind,
			"charged_seconds": rec.ChargedSeconds,
			"amount":          rec.Amount.String(),
		},
	}
	s.send(ctx, notification)
}

func (s *NotificationService) send(ctx context.Context, notification Notification) {
	notification.ID = uuid.New().String()
	notification.CreatedAt = s.clock.Now()

	s.logger.InfoContext(ctx, "notification",
		"notification_id", notification.ID,
		"type", notification.Type,
		"recipient", notification.RecipientID,
		"title", notification.Title,
		"message", notification.Message,
	)
}
