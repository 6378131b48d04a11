package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/store"
)

// mockLedger is an in-memory store.Ledger. Calls yield briefly so that
// unserialized callers would interleave.
type mockLedger struct {
	mu   sync.Mutex
	rows []*model.LedgerRow

	appendErr   error
	containsErr error
	statsErr    error
	skipDedup   bool // ContainsPayment always reports false
}

func (m *mockLedger) RollStats(_ context.Context) (model.RollStats, error) {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return model.RollStats{}, m.statsErr
	}
	cells := make([]string, len(m.rows))
	for i, r := range m.rows {
		cells[i] = r.Roll
	}
	return model.RollStatsFromColumn(cells), nil
}

func (m *mockLedger) ContainsPayment(_ context.Context, id string) (bool, error) {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.containsErr != nil {
		return false, m.containsErr
	}
	if m.skipDedup {
		return false, nil
	}
	for _, r := range m.rows {
		if r.PaymentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) AppendRow(_ context.Context, row *model.LedgerRow) error {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	for _, r := range m.rows {
		if r.PaymentID == row.PaymentID {
			return store.ErrDuplicatePayment
		}
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockLedger) ListRows(_ context.Context) ([]*model.LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.LedgerRow(nil), m.rows...), nil
}

func (m *mockLedger) Close() error { return nil }

func (m *mockLedger) snapshot() []*model.LedgerRow {
	rows, _ := m.ListRows(context.Background())
	return rows
}

// mockChannel records sent messages; it fails every send when err is set.
type mockChannel struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (c *mockChannel) Send(_ context.Context, msg notify.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *mockChannel) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.sent...)
}

type published struct {
	topic string
	event any
}

// mockPublisher records published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *mockPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic, event})
	return p.err
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

var errBackend = errors.New("backend down")
