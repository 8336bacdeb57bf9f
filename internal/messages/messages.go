// Package messages handles the fire-and-forget control messages a UI sends
// to the background worker.
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/engine"
	"stockwatch/pkg/models"
)

type Type string

const (
	TypeSetProxyURL             Type = "SET_PROXY_URL"
	TypeSetNotificationSettings Type = "SET_NOTIFICATION_SETTINGS"
	TypeTestNotification        Type = "TEST_NOTIFICATION"
)

var ErrUnknownType = errors.New("unknown message type")

// Message is a tagged payload. Only the field matching Type is read.
type Message struct {
	Type     Type                         `json:"type"`
	ProxyURL string                       `json:"proxyUrl,omitempty"`
	Settings *models.NotificationSettings `json:"settings,omitempty"`
}

// SettingsTarget receives proxy and settings updates.
type SettingsTarget interface {
	SetProxyURL(raw string) error
	Save(ctx context.Context, s models.NotificationSettings) error
}

type Notifier interface {
	Show(ctx context.Context, n models.Notification) error
}

type Handler struct {
	settings SettingsTarget
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

func NewHandler(settings SettingsTarget, notifier Notifier, log *logrus.Entry) *Handler {
	return &Handler{settings: settings, notifier: notifier, log: log, now: time.Now}
}

// Handle applies one message. There is no reply payload; the error only
// tells the transport whether the message was accepted.
func (h *Handler) Handle(ctx context.Context, msg Message) error {
	log := h.log.WithField("type", msg.Type)

	switch msg.Type {
	case TypeSetProxyURL:
		if err := h.settings.SetProxyURL(msg.ProxyURL); err != nil {
			return err
		}
		log.Debug("proxy url message applied")
		return nil

	case TypeSetNotificationSettings:
		if msg.Settings == nil {
			return &models.ConfigValidationError{Field: "settings", Reason: "missing"}
		}
		// Save broadcasts to subscribers, which reschedules the periodic job.
		if err := h.settings.Save(ctx, *msg.Settings); err != nil {
			return err
		}
		log.Info("notification settings updated")
		return nil

	case TypeTestNotification:
		if err := h.notifier.Show(ctx, engine.TestNotification(h.now())); err != nil {
			return fmt.Errorf("test notification: %w", err)
		}
		log.Info("test notification displayed")
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
}

// Inbound decodes a raw frame and handles it. It matches hub.InboundFunc so
// WebSocket clients can post the same messages as the HTTP route.
func (h *Handler) Inbound(ctx context.Context, frame []byte) error {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return h.Handle(ctx, msg)
}
