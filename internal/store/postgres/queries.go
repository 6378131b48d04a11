package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/store"
)

// rowColumns is the column list used for SELECT statements on the
// registrations table, in ledger column order.
const rowColumns = `recorded_at, roll_number, payment_id, name, email, phone,
	dob, guardian_name, address, amount, method`

// Unique index names from the migrations.
const (
	paymentIDConstraint  = "registrations_payment_id_key"
	rollNumberConstraint = "registrations_roll_number_key"
)

// pqUniqueViolation is the SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRollStats(ctx context.Context, db executor) (model.RollStats, error) {
	var (
		count   int
		maxRoll int64
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(roll_number::BIGINT), 0)
		FROM registrations
		WHERE roll_number ~ '^[0-9]+$'`,
	).Scan(&count, &maxRoll)
	if err != nil {
		return model.RollStats{}, fmt.Errorf("roll stats: %w", err)
	}
	return model.RollStats{Count: count, Max: model.RollNumber(maxRoll)}, nil
}

func queryContainsPayment(ctx context.Context, db executor, paymentID string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE payment_id = $1)`,
		paymentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment %s: %w", paymentID, err)
	}
	return exists, nil
}

func queryAppendRow(ctx context.Context, db executor, r *model.LedgerRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO registrations (
			recorded_at, roll_number, payment_id, name, email, phone,
			dob, guardian_name, address, amount, method
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`,
		r.Timestamp,
		r.Roll,
		r.PaymentID,
		r.Name,
		nullString(r.Email),
		nullString(r.Phone),
		nullString(r.DOB),
		nullString(r.Guardian),
		nullString(r.Address),
		r.Amount,
		nullString(r.Method),
	)
	if err != nil {
		return uniqueViolation(err)
	}
	return nil
}

func queryListRows(ctx context.Context, db executor) ([]*model.LedgerRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+rowColumns+` FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()
	return scanLedgerRows(rows)
}

// uniqueViolation maps a unique-index failure on the registrations table to
// the matching store sentinel. Other errors pass through unchanged.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case paymentIDConstraint:
		return fmt.Errorf("%w: %s", store.ErrDuplicatePayment, pqErr.Detail)
	case rollNumberConstraint:
		return fmt.Errorf("%w: %s", store.ErrDuplicateRoll, pqErr.Detail)
	}
	return err
}
