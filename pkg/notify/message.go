package notify

import (
	"time"
)

// Message is the normalized inbound push message both provider variants
// deliver through OnMessage.
type Message struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	// Topic is set when the backend attributes the message to a topic
	// delivery; empty for direct sends.
	Topic      string    `json:"topic,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Importance mirrors the Android channel importance scale.
type Importance int

const (
	ImportanceMin     Importance = 1
	ImportanceLow     Importance = 2
	ImportanceDefault Importance = 3
	ImportanceHigh    Importance = 4
	ImportanceMax     Importance = 5
)

// Channel is an OS-level notification channel. Channels only exist on the
// Android surface; the kit returns empty results everywhere else.
type Channel struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Importance  Importance `json:"importance"`
	Sound       string     `json:"sound,omitempty"`
	Vibration   bool       `json:"vibration"`
	Lights      bool       `json:"lights"`
}

// LocalNotification is the declarative descriptor for a locally scheduled
// notification. Exactly one schedule form must be populated; the schedule
// package rejects descriptors with none or more than one.
type LocalNotification struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	ChannelID string            `json:"channel_id,omitempty"`
	Schedule  Schedule          `json:"schedule"`
}

// InAppType selects the visual styling of an in-app notification.
type InAppType string

const (
	InAppInfo    InAppType = "info"
	InAppSuccess InAppType = "success"
	InAppWarning InAppType = "warning"
	InAppError   InAppType = "error"
)

// InAppPosition places the transient element on screen.
type InAppPosition string

const (
	PositionTop    InAppPosition = "top"
	PositionBottom InAppPosition = "bottom"
	PositionCenter InAppPosition = "center"
)

// InAppAction is a button rendered on an in-app notification.
type InAppAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// InAppOptions describes an in-app notification to show. A zero Duration
// means the notification stays until dismissed manually.
type InAppOptions struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Type     InAppType         `json:"type,omitempty"`
	Position InAppPosition     `json:"position,omitempty"`
	Duration time.Duration     `json:"duration,omitempty"`
	Actions  []InAppAction     `json:"actions,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}
