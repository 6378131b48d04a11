package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanLedgerRow scans a single row into a model.LedgerRow.
// The row must contain columns in the order defined by rowColumns.
func scanLedgerRow(row scannable) (*model.LedgerRow, error) {
	var r model.LedgerRow
	var (
		email    sql.NullString
		phone    sql.NullString
		dob      sql.NullString
		guardian sql.NullString
		address  sql.NullString
		method   sql.NullString
	)

	err := row.Scan(
		&r.Timestamp,
		&r.Roll,
		&r.PaymentID,
		&r.Name,
		&email,
		&phone,
		&dob,
		&guardian,
		&address,
		&r.Amount,
		&method,
	)
	if err != nil {
		return nil, err
	}

	r.Timestamp = r.Timestamp.UTC()
	r.Email = email.String
	r.Phone = phone.String
	r.DOB = dob.String
	r.Guardian = guardian.String
	r.Address = address.String
	r.Method = method.String
	return &r, nil
}

// scanLedgerRows scans multiple rows into a slice of model.LedgerRow pointers.
func scanLedgerRows(rows *sql.Rows) ([]*model.LedgerRow, error) {
	var out []*model.LedgerRow
	for rows.Next() {
		r, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
