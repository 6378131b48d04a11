package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// RollWidth is the minimum number of digits a rendered roll number carries.
const RollWidth = 4

// RollNumber is the sequential number assigned to a registration.
type RollNumber int

// String renders the roll number zero-padded to RollWidth digits. Wider
// numbers are never truncated.
func (r RollNumber) String() string {
	return fmt.Sprintf("%0*d", RollWidth, int(r))
}

// ParseRollNumber parses a stored roll number. Only plain decimal digits are
// accepted; anything else is not a roll number.
func ParseRollNumber(s string) (RollNumber, error) {
	if s == "" {
		return 0, fmt.Errorf("empty roll number")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("roll number %q is not numeric", s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse roll number %q: %w", s, err)
	}
	return RollNumber(n), nil
}

// LedgerColumns is the persisted column order of a ledger row.
var LedgerColumns = []string{
	"timestamp", "roll_number", "payment_id", "name", "email", "phone",
	"dob", "guardian_name", "address", "amount", "method",
}

// LedgerRow is one persisted registration.
type LedgerRow struct {
	Timestamp time.Time       `json:"timestamp"`
	Roll      string          `json:"roll_number"`
	PaymentID string          `json:"payment_id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Phone     string          `json:"phone"`
	DOB       string          `json:"dob"`
	Guardian  string          `json:"guardian_name"`
	Address   string          `json:"address"`
	Amount    decimal.Decimal `json:"amount"` // major currency units
	Method    string          `json:"method"`
}

// NewLedgerRow builds the row recorded for a captured payment.
func NewLedgerRow(evt *PaymentEvent, reg *Registrant, roll RollNumber, now time.Time) *LedgerRow {
	return &LedgerRow{
		Timestamp: now.UTC(),
		Roll:      roll.String(),
		PaymentID: evt.PaymentID,
		Name:      reg.Name,
		Email:     evt.Email,
		Phone:     evt.Contact,
		DOB:       reg.DOB,
		Guardian:  reg.Guardian,
		Address:   reg.Address,
		Amount:    MajorUnits(evt.Amount),
		Method:    evt.Method,
	}
}

// Values returns the row's cells in LedgerColumns order.
func (r *LedgerRow) Values() []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Roll,
		r.PaymentID,
		r.Name,
		r.Email,
		r.Phone,
		r.DOB,
		r.Guardian,
		r.Address,
		r.Amount.String(),
		r.Method,
	}
}

// MajorUnits converts an amount in minor currency units (paise, cents) to
// major units.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// RollStats summarises the roll-number column of the ledger.
type RollStats struct {
	Count int        // entries that parse as roll numbers
	Max   RollNumber // largest such entry, 0 when Count is 0
}

// RollStatsFromColumn computes RollStats over raw roll-number cells, skipping
// blanks and anything non-numeric.
func RollStatsFromColumn(cells []string) RollStats {
	var st RollStats
	for _, c := range cells {
		n, err := ParseRollNumber(c)
		if err != nil {
			continue
		}
		st.Count++
		if n > st.Max {
			st.Max = n
		}
	}
	return st
}
