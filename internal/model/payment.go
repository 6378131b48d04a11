package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventPaymentCaptured is the only gateway event kind that produces a registration.
const EventPaymentCaptured = "payment.captured"

// Note keys carried in the payment's free-form notes map.
const (
	NoteName     = "name"
	NoteWhatsApp = "whatsapp_number"
	NoteDOB      = "dob"
	NoteGuardian = "guardian_name"
	NoteAddress  = "address"
)

// PaymentEvent is a parsed gateway webhook for a single payment.
type PaymentEvent struct {
	Kind      string `json:"event"`
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"` // minor currency units
	Currency  string `json:"currency"`
	Method    string `json:"method"`
	Email     string `json:"email"`
	Contact   string `json:"contact"`
	Notes     Notes  `json:"notes"`
}

// IsCaptured reports whether the event is a captured payment.
func (e *PaymentEvent) IsCaptured() bool {
	return e.Kind == EventPaymentCaptured
}

// Registrant extracts and validates the registrant record from the notes.
// It returns a *ValidationError when a required field is missing.
func (e *PaymentEvent) Registrant() (*Registrant, error) {
	r := &Registrant{
		Name:     e.Notes.Get(NoteName),
		WhatsApp: e.Notes.Get(NoteWhatsApp),
		DOB:      e.Notes.Get(NoteDOB),
		Guardian: e.Notes.Get(NoteGuardian),
		Address:  e.Notes.Get(NoteAddress),
	}
	if err := ValidateRegistrant(r); err != nil {
		return nil, err
	}
	return r, nil
}

// paymentEntity mirrors the gateway's payment object.
type paymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Method   string `json:"method"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Notes    Notes  `json:"notes"`
}

// webhookEnvelope accepts both the gateway's nested shape
// ({"payload":{"payment":{"entity":{...}}}}) and a flattened {"payment":{...}}.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity *paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	Payment *paymentEntity `json:"payment"`
}

// ParseWebhook decodes a raw webhook body into a PaymentEvent. Events that
// carry no payment entity decode with only Kind set.
func ParseWebhook(body []byte) (*PaymentEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if env.Event == "" {
		return nil, &ValidationError{Errors: []FieldError{{Field: "event", Message: "is required"}}}
	}

	evt := &PaymentEvent{Kind: env.Event}
	entity := env.Payload.Payment.Entity
	if entity == nil {
		entity = env.Payment
	}
	if entity == nil {
		return evt, nil
	}

	evt.PaymentID = entity.ID
	evt.OrderID = entity.OrderID
	evt.Amount = entity.Amount
	evt.Currency = entity.Currency
	evt.Method = entity.Method
	evt.Email = entity.Email
	evt.Contact = entity.Contact
	evt.Notes = entity.Notes
	return evt, nil
}

// Notes is the payment's free-form key/value map. The gateway encodes an
// empty notes object as an empty JSON array, which decodes to an empty map.
type Notes map[string]string

// Get returns the trimmed value for key, or "" when absent.
func (n Notes) Get(key string) string {
	return strings.TrimSpace(n[key])
}

// UnmarshalJSON accepts an object of scalar values or an empty array.
func (n *Notes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*n = nil
	case []any:
		if len(v) > 0 {
			return fmt.Errorf("notes: expected object, got non-empty array")
		}
		*n = Notes{}
	case map[string]any:
		out := make(Notes, len(v))
		for k, val := range v {
			switch s := val.(type) {
			case nil:
				continue
			case string:
				out[k] = s
			case json.Number:
				out[k] = s.String()
			case bool:
				out[k] = fmt.Sprintf("%t", s)
			default:
				return fmt.Errorf("notes: value for %q is not a scalar", k)
			}
		}
		*n = out
	default:
		return fmt.Errorf("notes: expected object, got %T", raw)
	}
	return nil
}
