package models

import "time"

// ChangeEvent is emitted when a product's aggregate availability flips or
// the product is seen for the first time. It is never persisted.
type ChangeEvent struct {
	ProductID         string  `json:"productId"`
	Chain             ChainID `json:"chain"`
	Name              string  `json:"name"`
	PreviousAvailable bool    `json:"previousAvailable"`
	CurrentAvailable  bool    `json:"currentAvailable"`
	ImageURL          string  `json:"imageUrl"`
	FirstSeen         bool    `json:"firstSeen,omitempty"`
}

// Notification is what the dispatcher hands to every sink.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Icon      string    `json:"icon"`
	Tag       string    `json:"tag,omitempty"`
	ProductID string    `json:"productId,omitempty"`
	Chain     ChainID   `json:"chain,omitempty"`
	Available *bool     `json:"available,omitempty"`
	At        time.Time `json:"at"`
}

// Permission mirrors the notification permission states of a user agent.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)
