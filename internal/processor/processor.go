// Package processor turns verified payment webhooks into ledger rows and
// confirmation messages.
//
// For every captured payment the processor checks for a prior row, allocates
// the next roll number, and appends the row, holding a single lock across
// all three so concurrent events cannot claim the same number. The
// confirmation is sent after the lock is released; its failure never undoes
// the recorded row.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/rollcall/internal/events"
	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/sequence"
	"github.com/alfredjeanlab/rollcall/internal/store"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

// Outcome is how an event was handled.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
)

// Result describes a handled event.
type Result struct {
	Outcome   Outcome          `json:"outcome"`
	PaymentID string           `json:"payment_id,omitempty"`
	Row       *model.LedgerRow `json:"row,omitempty"`
	Delivery  *notify.Delivery `json:"delivery,omitempty"`

	// Reason explains an ignored event (wraps ErrIneligible or ErrDuplicate).
	Reason error `json:"-"`
	// NotifyErr is the confirmation failure, if any. The row stands regardless.
	NotifyErr error `json:"-"`
}

// Deps are the collaborators a Processor drives.
type Deps struct {
	Verifier  *verify.Verifier
	Ledger    store.Ledger
	Allocator sequence.Allocator
	Notifier  *notify.Notifier
	Publisher events.Publisher // optional
	Metrics   *Metrics         // optional
	Logger    *slog.Logger     // optional
}

// Processor orchestrates payment events end to end.
type Processor struct {
	verifier  *verify.Verifier
	ledger    store.Ledger
	alloc     sequence.Allocator
	notifier  *notify.Notifier
	publisher events.Publisher
	metrics   *Metrics
	logger    *slog.Logger

	ledgerTimeout time.Duration
	now           func() time.Time

	// mu serializes duplicate check, allocation and append.
	mu sync.Mutex
}

// New returns a Processor. ledgerTimeout bounds each ledger call; zero means
// no bound beyond the caller's context.
func New(d Deps, ledgerTimeout time.Duration) *Processor {
	p := &Processor{
		verifier:      d.Verifier,
		ledger:        d.Ledger,
		alloc:         d.Allocator,
		notifier:      d.Notifier,
		publisher:     d.Publisher,
		metrics:       d.Metrics,
		logger:        d.Logger,
		ledgerTimeout: ledgerTimeout,
		now:           time.Now,
	}
	if p.publisher == nil {
		p.publisher = &events.NoopPublisher{}
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// HandleWebhook authenticates the raw body against signature, parses it and
// processes the event. Parse failures are returned as *model.ValidationError
// or a decode error; see Process for the rest.
func (p *Processor) HandleWebhook(ctx context.Context, body []byte, signature string) (*Result, error) {
	if !p.verifier.Verify(body, signature) {
		p.metrics.events.WithLabelValues("rejected").Inc()
		p.logger.Warn("webhook rejected", "err", ErrAuthentication)
		return nil, ErrAuthentication
	}
	evt, err := model.ParseWebhook(body)
	if err != nil {
		p.metrics.events.WithLabelValues("invalid").Inc()
		return nil, err
	}
	return p.Process(ctx, evt)
}

// Process handles a verified event. Ineligible and duplicate events return
// a Result with no error. Only a failed ledger read or write returns an
// error, wrapping ErrLedgerUnavailable.
func (p *Processor) Process(ctx context.Context, evt *model.PaymentEvent) (*Result, error) {
	start := time.Now()
	defer func() { p.metrics.duration.Observe(time.Since(start).Seconds()) }()

	reg, err := eligible(evt)
	if err != nil {
		return p.ignore(ctx, evt, err), nil
	}

	res, roll, err := p.record(ctx, evt, reg)
	if err != nil {
		p.metrics.events.WithLabelValues("failed").Inc()
		p.logger.Error("recording registration failed", "payment_id", evt.PaymentID, "err", err)
		return nil, err
	}
	if res.Outcome == OutcomeDuplicate {
		p.metrics.events.WithLabelValues(string(OutcomeDuplicate)).Inc()
		p.logger.Info("duplicate payment ignored", "payment_id", evt.PaymentID)
		return res, nil
	}

	p.metrics.events.WithLabelValues(string(OutcomeProcessed)).Inc()
	p.logger.Info("registration recorded", "payment_id", evt.PaymentID, "roll", res.Row.Roll)
	p.publish(ctx, events.TopicRegistrationRecorded, events.RegistrationRecorded{Row: res.Row, OrderID: evt.OrderID})

	p.notify(ctx, evt, reg, roll, res)
	return res, nil
}

func eligible(evt *model.PaymentEvent) (*model.Registrant, error) {
	if !evt.IsCaptured() {
		return nil, fmt.Errorf("%w: event %q", ErrIneligible, evt.Kind)
	}
	if evt.PaymentID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrIneligible)
	}
	reg, err := evt.Registrant()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIneligible, err)
	}
	return reg, nil
}

func (p *Processor) ignore(ctx context.Context, evt *model.PaymentEvent, reason error) *Result {
	p.metrics.events.WithLabelValues(string(OutcomeIgnored)).Inc()
	p.logger.Info("event ignored", "event", evt.Kind, "payment_id", evt.PaymentID, "reason", reason)
	p.publish(ctx, events.TopicEventIgnored, events.EventIgnored{
		Event:     evt.Kind,
		PaymentID: evt.PaymentID,
		Reason:    reason.Error(),
	})
	return &Result{Outcome: OutcomeIgnored, PaymentID: evt.PaymentID, Reason: reason}
}

// record runs the serialized part: duplicate check, allocation, append.
func (p *Processor) record(ctx context.Context, evt *model.PaymentEvent, reg *model.Registrant) (*Result, model.RollNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dup := &Result{
		Outcome:   OutcomeDuplicate,
		PaymentID: evt.PaymentID,
		Reason:    fmt.Errorf("%w: %s", ErrDuplicate, evt.PaymentID),
	}

	var seen bool
	err := p.withLedger(ctx, func(ctx context.Context) (err error) {
		seen, err = p.ledger.ContainsPayment(ctx, evt.PaymentID)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: duplicate check: %w", ErrLedgerUnavailable, err)
	}
	if seen {
		return dup, 0, nil
	}

	var st model.RollStats
	err = p.withLedger(ctx, func(ctx context.Context) (err error) {
		st, err = p.ledger.RollStats(ctx)
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading roll numbers: %w", ErrLedgerUnavailable, err)
	}

	roll := p.alloc.Next(st)
	row := model.NewLedgerRow(evt, reg, roll, p.now())
	err = p.withLedger(ctx, func(ctx context.Context) error {
		return p.ledger.AppendRow(ctx, row)
	})
	switch {
	case errors.Is(err, store.ErrDuplicatePayment):
		return dup, 0, nil
	case err != nil:
		return nil, 0, fmt.Errorf("%w: append: %w", ErrLedgerUnavailable, err)
	}
	return &Result{Outcome: OutcomeProcessed, PaymentID: evt.PaymentID, Row: row}, roll, nil
}

func (p *Processor) withLedger(ctx context.Context, fn func(context.Context) error) error {
	if p.ledgerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ledgerTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (p *Processor) notify(ctx context.Context, evt *model.PaymentEvent, reg *model.Registrant, roll model.RollNumber, res *Result) {
	d, err := p.notifier.Deliver(ctx, notify.ConfirmationFor(evt, reg, roll))
	if err != nil {
		res.NotifyErr = err
		result := resultFailed
		if errors.Is(err, ErrInvalidRecipient) {
			result = resultInvalidRecipient
		}
		p.metrics.notifications.WithLabelValues(result).Inc()
		p.logger.Warn("confirmation not delivered",
			"payment_id", evt.PaymentID,
			"roll", res.Row.Roll,
			"recipient", d.To,
			"err", err,
		)
		p.publish(ctx, events.TopicNotificationFailed, events.NotificationFailed{
			PaymentID: evt.PaymentID,
			Roll:      res.Row.Roll,
			To:        d.To,
			Error:     err.Error(),
		})
		return
	}

	res.Delivery = &d
	p.metrics.notifications.WithLabelValues(resultSent).Inc()
	p.logger.Info("confirmation delivered",
		"payment_id", evt.PaymentID,
		"roll", res.Row.Roll,
		"recipient", d.To,
		"delivery_id", d.ID,
	)
	p.publish(ctx, events.TopicNotificationSent, events.NotificationSent{
		PaymentID:  evt.PaymentID,
		Roll:       res.Row.Roll,
		DeliveryID: d.ID,
		To:         d.To,
		Messages:   d.Sent,
	})
}

// SendManual drives only the confirmation step for an operator-supplied
// registration. Nothing is recorded.
func (p *Processor) SendManual(ctx context.Context, c notify.Confirmation) (notify.Delivery, error) {
	d, err := p.notifier.Deliver(ctx, c)
	if err != nil {
		p.logger.Warn("manual confirmation not delivered", "roll", c.Roll, "err", err)
		return d, err
	}
	p.logger.Info("manual confirmation delivered", "roll", c.Roll, "recipient", d.To, "delivery_id", d.ID)
	return d, nil
}

// Rows lists the ledger in insertion order.
func (p *Processor) Rows(ctx context.Context) ([]*model.LedgerRow, error) {
	var rows []*model.LedgerRow
	err := p.withLedger(ctx, func(ctx context.Context) (err error) {
		rows, err = p.ledger.ListRows(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	return rows, nil
}

func (p *Processor) publish(ctx context.Context, topic string, event any) {
	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		p.logger.Warn("publishing event failed", "topic", topic, "err", err)
	}
}
