// Package postgres implements the store.Ledger interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresLedger implements store.Ledger backed by a PostgreSQL database.
type PostgresLedger struct {
	db *sql.DB
}

// Compile-time check that PostgresLedger implements store.Ledger.
var _ store.Ledger = (*PostgresLedger)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresLedger{db: db}, nil
}

// NewWithDB wraps an already-open database handle without running migrations.
func NewWithDB(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresLedger) Close() error {
	return s.db.Close()
}

func (s *PostgresLedger) RollStats(ctx context.Context) (model.RollStats, error) {
	return queryRollStats(ctx, s.db)
}

func (s *PostgresLedger) ContainsPayment(ctx context.Context, paymentID string) (bool, error) {
	return queryContainsPayment(ctx, s.db, paymentID)
}

func (s *PostgresLedger) AppendRow(ctx context.Context, row *model.LedgerRow) error {
	return queryAppendRow(ctx, s.db, row)
}

func (s *PostgresLedger) ListRows(ctx context.Context) ([]*model.LedgerRow, error) {
	return queryListRows(ctx, s.db)
}
