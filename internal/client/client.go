// Package client talks to a running rollcall server: the HTTP/JSON API for
// operator commands and the gRPC health service for probes.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// Client is the interface the CLI commands use to reach the server.
type Client interface {
	// ManualSend sends a confirmation for an operator-supplied registration.
	ManualSend(ctx context.Context, req *ManualSendRequest) (*ManualSendResponse, error)

	// ListRegistrations returns the ledger in insertion order.
	ListRegistrations(ctx context.Context) ([]*model.LedgerRow, error)

	// Webhook posts a raw gateway body with its signature.
	Webhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error)

	// Health returns the server status and delivery channel state.
	Health(ctx context.Context) (*HealthStatus, error)

	Close() error
}

// ManualSendRequest holds parameters for a manual confirmation. Empty
// optional fields take the server's defaults.
type ManualSendRequest struct {
	RollNumber string      `json:"rollNumber"`
	OrderID    string      `json:"orderId,omitempty"`
	PaymentID  string      `json:"paymentId,omitempty"`
	Amount     *int64      `json:"amount,omitempty"`
	Currency   string      `json:"currency,omitempty"`
	Method     string      `json:"method,omitempty"`
	Email      string      `json:"email,omitempty"`
	Contact    string      `json:"contact"`
	Notes      model.Notes `json:"notes"`
}

// ManualSendResponse is the server's answer to a manual send.
type ManualSendResponse struct {
	Message  string `json:"message"`
	Delivery struct {
		ID   string `json:"delivery_id"`
		To   string `json:"to"`
		Sent int    `json:"sent"`
	} `json:"delivery"`
}

// WebhookResult is the server's answer to a webhook.
type WebhookResult struct {
	Outcome   string           `json:"outcome"`
	PaymentID string           `json:"payment_id,omitempty"`
	Row       *model.LedgerRow `json:"row,omitempty"`
	Delivery  json.RawMessage  `json:"delivery,omitempty"`
}

// HealthStatus is the body of GET /v1/health.
type HealthStatus struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}
