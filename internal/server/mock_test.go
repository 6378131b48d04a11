package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/processor"
	"github.com/alfredjeanlab/rollcall/internal/retry"
	"github.com/alfredjeanlab/rollcall/internal/sequence"
	"github.com/alfredjeanlab/rollcall/internal/store"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

const testSecret = "whsec_test"

// mockLedger is an in-memory store.Ledger.
type mockLedger struct {
	mu        sync.Mutex
	rows      []*model.LedgerRow
	appendErr error
	listErr   error
}

func (m *mockLedger) RollStats(_ context.Context) (model.RollStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cells := make([]string, len(m.rows))
	for i, r := range m.rows {
		cells[i] = r.Roll
	}
	return model.RollStatsFromColumn(cells), nil
}

func (m *mockLedger) ContainsPayment(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.PaymentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) AppendRow(_ context.Context, row *model.LedgerRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockLedger) ListRows(_ context.Context) ([]*model.LedgerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]*model.LedgerRow(nil), m.rows...), nil
}

func (m *mockLedger) Close() error { return nil }

var _ store.Ledger = (*mockLedger)(nil)

// mockChannel records messages and doubles as the session readiness.
type mockChannel struct {
	mu    sync.Mutex
	sent  []notify.Message
	err   error
	ready atomic.Bool
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

func (c *mockChannel) Ready() bool { return c.ready.Load() }

func (c *mockChannel) messages() []notify.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notify.Message(nil), c.sent...)
}

var errBackend = errors.New("backend down")

type fixture struct {
	srv     *Server
	ledger  *mockLedger
	channel *mockChannel
	signer  *verify.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	alloc, err := sequence.New(sequence.PolicyCount, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		ledger:  &mockLedger{},
		channel: &mockChannel{},
		signer:  verify.New(testSecret),
	}
	f.channel.ready.Store(true)

	reg := prometheus.NewRegistry()
	n := notify.NewNotifier(
		notify.NewFormatter(notify.Template{Title: "RECEIPT", Footer: "Thanks"}, ""),
		f.channel,
		retry.Policy{Attempts: 2, Delay: time.Millisecond},
		time.Second,
		nil,
	)
	proc := processor.New(processor.Deps{
		Verifier:  f.signer,
		Ledger:    f.ledger,
		Allocator: alloc,
		Notifier:  n,
		Metrics:   processor.NewMetrics(reg),
	}, time.Second)
	f.srv = NewServer(proc, f.channel, reg, nil)
	return f
}
