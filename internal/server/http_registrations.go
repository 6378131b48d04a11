package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/processor"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

// maxWebhookBytes caps the webhook body.
const maxWebhookBytes = 1 << 20

// handleWebhook handles POST /v1/webhook. The gateway gets 200 for anything
// that should not be redelivered, 400 for a bad signature or payload, and
// 500 only when the registration could not be recorded.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}

	// A gateway that hangs up mid-request must not abandon a half-recorded event.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.proc.HandleWebhook(ctx, body, r.Header.Get(verify.SignatureHeader))
	switch {
	case errors.Is(err, processor.ErrAuthentication):
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	case errors.Is(err, processor.ErrLedgerUnavailable):
		writeError(w, http.StatusInternalServerError, "registration could not be recorded")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ManualSendRequest is the body of POST /v1/manual-send.
type ManualSendRequest struct {
	RollNumber RollField   `json:"rollNumber"`
	OrderID    string      `json:"orderId,omitempty"`
	PaymentID  string      `json:"paymentId,omitempty"`
	Amount     *int64      `json:"amount,omitempty"`
	Currency   string      `json:"currency,omitempty"`
	Method     string      `json:"method,omitempty"`
	Email      string      `json:"email,omitempty"`
	Contact    string      `json:"contact"`
	Notes      model.Notes `json:"notes"`
}

// RollField accepts a roll number as a JSON string ("0042") or number (42).
type RollField string

func (f *RollField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = RollField(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("rollNumber: %w", err)
	}
	*f = RollField(n.String())
	return nil
}

// Manual send defaults.
const (
	ManualOrderID   = "MANUAL_ORDER"
	ManualPaymentID = "MANUAL_PAYMENT"
	ManualAmount    = 50000
	ManualCurrency  = "INR"
	ManualMethod    = "manual"
)

// ManualSendResponse is returned by a successful manual send.
type ManualSendResponse struct {
	Message  string          `json:"message"`
	Delivery notify.Delivery `json:"delivery"`
}

// confirmation validates the request and fills in defaults.
func (req *ManualSendRequest) confirmation() (notify.Confirmation, error) {
	var ve model.ValidationError
	var roll model.RollNumber
	if req.RollNumber == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "rollNumber", Message: "is required"})
	} else if n, err := model.ParseRollNumber(string(req.RollNumber)); err != nil {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "rollNumber", Message: err.Error()})
	} else {
		roll = n
	}
	if req.Contact == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "contact", Message: "is required"})
	}
	reg := &model.Registrant{
		Name:     req.Notes.Get(model.NoteName),
		WhatsApp: req.Notes.Get(model.NoteWhatsApp),
		DOB:      req.Notes.Get(model.NoteDOB),
		Guardian: req.Notes.Get(model.NoteGuardian),
		Address:  req.Notes.Get(model.NoteAddress),
	}
	var regErr *model.ValidationError
	if err := model.ValidateRegistrant(reg); errors.As(err, &regErr) {
		ve.Errors = append(ve.Errors, regErr.Errors...)
	}
	if ve.HasErrors() {
		return notify.Confirmation{}, &ve
	}

	c := notify.Confirmation{
		OrderID:    or(req.OrderID, ManualOrderID),
		PaymentID:  or(req.PaymentID, ManualPaymentID),
		Roll:       roll,
		Amount:     ManualAmount,
		Currency:   or(req.Currency, ManualCurrency),
		Method:     or(req.Method, ManualMethod),
		Email:      req.Email,
		Contact:    req.Contact,
		Registrant: *reg,
	}
	if req.Amount != nil {
		c.Amount = *req.Amount
	}
	return c, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// handleManualSend handles POST /v1/manual-send. It sends a confirmation for
// an operator-supplied roll number without touching the ledger.
func (s *Server) handleManualSend(w http.ResponseWriter, r *http.Request) {
	var req ManualSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c, err := req.confirmation()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.proc.SendManual(r.Context(), c)
	switch {
	case errors.Is(err, processor.ErrInvalidRecipient):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to send confirmation: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ManualSendResponse{
		Message:  fmt.Sprintf("confirmation for roll %s sent to %s", c.Roll, d.To),
		Delivery: d,
	})
}

// ListRegistrationsResponse is the body of GET /v1/registrations.
type ListRegistrationsResponse struct {
	Registrations []*model.LedgerRow `json:"registrations"`
	Total         int                `json:"total"`
}

// handleListRegistrations handles GET /v1/registrations.
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	rows, err := s.proc.Rows(r.Context())
	if err != nil {
		s.logger.Error("listing registrations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list registrations")
		return
	}
	if rows == nil {
		rows = []*model.LedgerRow{}
	}
	writeJSON(w, http.StatusOK, ListRegistrationsResponse{Registrations: rows, Total: len(rows)})
}
