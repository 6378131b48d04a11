// Package store defines the durable ledger the registration pipeline writes to.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// ErrDuplicatePayment is returned by AppendRow when the ledger already holds a
// row for the payment. Backends that cannot enforce this return nil and rely
// on the caller's duplicate check.
var ErrDuplicatePayment = errors.New("payment already recorded")

// ErrDuplicateRoll is returned by AppendRow when the roll number is taken.
var ErrDuplicateRoll = errors.New("roll number already assigned")

// Ledger is the append-only registration record.
//
// Appends from one process are expected to be serialized by the caller; the
// ledger itself only guarantees that a completed append is durable and keeps
// insertion order.
type Ledger interface {
	// RollStats scans the roll-number column.
	RollStats(ctx context.Context) (model.RollStats, error)

	// ContainsPayment reports whether a row exists for the payment ID.
	ContainsPayment(ctx context.Context, paymentID string) (bool, error)

	// AppendRow appends a single row.
	AppendRow(ctx context.Context, row *model.LedgerRow) error

	// ListRows returns all rows in insertion order.
	ListRows(ctx context.Context) ([]*model.LedgerRow, error)

	// Close releases the backend connection.
	Close() error
}
