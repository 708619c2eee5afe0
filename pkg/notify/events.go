package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the closed set of lifecycle events the kit emits.
type EventType string

const (
	EventReady                       EventType = "ready"
	EventError                       EventType = "error"
	EventPermissionChanged           EventType = "permission_changed"
	EventTokenReceived               EventType = "token_received"
	EventTokenRefreshed              EventType = "token_refreshed"
	EventSubscribed                  EventType = "subscribed"
	EventUnsubscribed                EventType = "unsubscribed"
	EventNotificationReceived        EventType = "notification_received"
	EventNotificationActionPerformed EventType = "notification_action_performed"
	EventNotificationSent            EventType = "notification_sent"
	EventNotificationScheduled       EventType = "notification_scheduled"
	EventNotificationCancelled       EventType = "notification_cancelled"
	EventChannelCreated              EventType = "channel_created"
	EventChannelDeleted              EventType = "channel_deleted"
)

// Event is a single lifecycle event. Events are fire-and-forget: they are
// delivered to listeners registered at emission time, in registration
// order, and are never buffered or replayed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh event with a unique id and the current time.
func NewEvent(t EventType, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Typed payloads, one per event kind that carries data.

// ReadyPayload accompanies EventReady.
type ReadyPayload struct {
	Platform     Platform     `json:"platform"`
	Capabilities Capabilities `json:"capabilities"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Op  string `json:"op"`
	Err error  `json:"-"`
}

// PermissionPayload accompanies EventPermissionChanged.
type PermissionPayload struct {
	Status PermissionStatus `json:"status"`
}

// TokenPayload accompanies EventTokenReceived and EventTokenRefreshed.
type TokenPayload struct {
	Token string `json:"token"`
}

// TopicPayload accompanies EventSubscribed and EventUnsubscribed.
type TopicPayload struct {
	Topic string `json:"topic"`
}

// ActionPayload accompanies EventNotificationActionPerformed.
type ActionPayload struct {
	NotificationID string `json:"notification_id"`
	ActionID       string `json:"action_id"`
}

// SchedulePayload accompanies EventNotificationScheduled and
// EventNotificationCancelled.
type SchedulePayload struct {
	NotificationID string     `json:"notification_id"`
	FireAt         *time.Time `json:"fire_at,omitempty"`
}

// ChannelPayload accompanies EventChannelCreated and EventChannelDeleted.
type ChannelPayload struct {
	ChannelID string `json:"channel_id"`
}
