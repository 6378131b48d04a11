package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/rollcall/internal/model"
)

// mockLedger is an in-memory RowLister.
type mockLedger struct {
	mu      sync.Mutex
	rows    []*model.LedgerRow
	listErr error
}

func (m *mockLedger) ListRows(_ context.Context) ([]*model.LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*model.LedgerRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *mockLedger) add(rows ...*model.LedgerRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
}

func testRow(roll, paymentID, name string) *model.LedgerRow {
	return &model.LedgerRow{
		Timestamp: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Roll:      roll,
		PaymentID: paymentID,
		Name:      name,
		Email:     "a@b.com",
		Phone:     "9876543210",
		DOB:       "2000-01-01",
		Guardian:  "G",
		Address:   "12 Main St, Pune",
		Amount:    decimal.New(50000, -2),
		Method:    "upi",
	}
}

// mockDestination records calls to Write.
type mockDestination struct {
	mu     sync.Mutex
	writes map[Format]int
	last   map[Format][]byte
	err    error
}

func newMockDestination() *mockDestination {
	return &mockDestination{writes: map[Format]int{}, last: map[Format][]byte{}}
}

func (d *mockDestination) Write(_ context.Context, snap Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes[snap.Format]++
	if d.err != nil {
		return d.err
	}
	cp := make([]byte, len(snap.Data))
	copy(cp, snap.Data)
	d.last[snap.Format] = cp
	return nil
}

func (d *mockDestination) count(f Format) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[f]
}

func (d *mockDestination) data(f Format) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[f]
}

var errBackend = errors.New("backend down")
