package hub

import (
	"time"

	"stockwatch/pkg/models"
)

// Event types pushed to connected clients.
const (
	EventWelcome      = "welcome"
	EventNotification = "notification"
	EventSettings     = "settings.update"
)

// Event is one JSON line on the TCP stream or one WebSocket text frame.
type Event struct {
	Type         string                       `json:"type"`
	Notification *models.Notification         `json:"notification,omitempty"`
	Settings     *models.NotificationSettings `json:"settings,omitempty"`
	Clients      int                          `json:"clients,omitempty"`
	Transport    string                       `json:"transport,omitempty"`
	// Replayed marks notifications sent from history on join.
	Replayed bool      `json:"replayed,omitempty"`
	At       time.Time `json:"at"`
}
