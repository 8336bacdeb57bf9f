package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"stockwatch/pkg/models"
)

const (
	NotificationTitle = "Product Availability Update"
	DefaultIcon       = "/favicon.svg"

	TestNotificationTitle = "Test Notification"
	TestNotificationBody  = "This is a test notification."
)

// NotificationFor renders the user facing notification of one change event.
func NotificationFor(ev models.ChangeEvent, chainName string, at time.Time) models.Notification {
	state := "unavailable"
	if ev.CurrentAvailable {
		state = "available"
	}
	icon := ev.ImageURL
	if icon == "" {
		icon = DefaultIcon
	}
	available := ev.CurrentAvailable
	return models.Notification{
		ID:        uuid.NewString(),
		Title:     NotificationTitle,
		Body:      fmt.Sprintf("%s is now %s in %s.", ev.Name, state, chainName),
		Icon:      icon,
		Tag:       fmt.Sprintf("availability-%s-%s", ev.Chain, ev.ProductID),
		ProductID: ev.ProductID,
		Chain:     ev.Chain,
		Available: &available,
		At:        at.UTC(),
	}
}

// TestNotification is sent on demand to check the sinks end to end.
func TestNotification(at time.Time) models.Notification {
	return models.Notification{
		ID:    uuid.NewString(),
		Title: TestNotificationTitle,
		Body:  TestNotificationBody,
		Icon:  DefaultIcon,
		Tag:   "test",
		At:    at.UTC(),
	}
}
