package events

import (
	"context"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// Event topic constants
const (
	TopicRegistrationRecorded = "rollcall.registration.recorded"
	TopicNotificationSent     = "rollcall.notification.sent"
	TopicNotificationFailed   = "rollcall.notification.failed"
	TopicEventIgnored         = "rollcall.event.ignored"

	// TopicAll matches every rollcall event.
	TopicAll = "rollcall.>"
)

// Event types

type RegistrationRecorded struct {
	Row     *model.LedgerRow `json:"row"`
	OrderID string           `json:"order_id,omitempty"`
}

type NotificationSent struct {
	PaymentID  string `json:"payment_id"`
	Roll       string `json:"roll_number"`
	DeliveryID string `json:"delivery_id"`
	To         string `json:"to"`
	Messages   int    `json:"messages"`
}

type NotificationFailed struct {
	PaymentID string `json:"payment_id"`
	Roll      string `json:"roll_number"`
	To        string `json:"to,omitempty"`
	Error     string `json:"error"`
}

type EventIgnored struct {
	Event     string `json:"event"`
	PaymentID string `json:"payment_id,omitempty"`
	Reason    string `json:"reason"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
