package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/rollcall/internal/events"
	"github.com/alfredjeanlab/rollcall/internal/model"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/retry"
	"github.com/alfredjeanlab/rollcall/internal/sequence"
	"github.com/alfredjeanlab/rollcall/internal/store"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

const testSecret = "whsec_test"

type harness struct {
	proc    *Processor
	ledger  *mockLedger
	channel *mockChannel
	pub     *mockPublisher
	metrics *Metrics
	signer  *verify.Verifier
}

func newHarness(t *testing.T, policy sequence.Policy, base int) *harness {
	t.Helper()
	alloc, err := sequence.New(policy, base)
	if err != nil {
		t.Fatalf("sequence.New: %v", err)
	}
	h := &harness{
		ledger:  &mockLedger{},
		channel: &mockChannel{},
		pub:     &mockPublisher{},
		metrics: NewMetrics(prometheus.NewRegistry()),
		signer:  verify.New(testSecret),
	}
	f := notify.NewFormatter(notify.Template{Title: "RECEIPT", Footer: "Thanks"}, "")
	n := notify.NewNotifier(f, h.channel, retry.Policy{Attempts: 2, Delay: time.Millisecond}, time.Second, nil)
	h.proc = New(Deps{
		Verifier:  h.signer,
		Ledger:    h.ledger,
		Allocator: alloc,
		Notifier:  n,
		Publisher: h.pub,
		Metrics:   h.metrics,
	}, time.Second)
	h.proc.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return h
}

func webhookBody(paymentID, whatsapp string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payment":{"id":%q,"order_id":"order_1","amount":50000,"currency":"INR","method":"upi","email":"a@b.com","contact":"9876543210","notes":{"name":"A","whatsapp_number":%q,"dob":"2000-01-01","guardian_name":"G","address":"X"}}}`, paymentID, whatsapp))
}

func captured(paymentID string) *model.PaymentEvent {
	return &model.PaymentEvent{
		Kind:      model.EventPaymentCaptured,
		PaymentID: paymentID,
		OrderID:   "order_" + paymentID,
		Amount:    50000,
		Currency:  "INR",
		Method:    "upi",
		Contact:   "9876543210",
		Notes:     model.Notes{"name": "Reg " + paymentID, "whatsapp_number": "9876543210"},
	}
}

func TestHandleWebhook_EndToEnd(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	body := webhookBody("pay_1", "9876543210")

	res, err := h.proc.HandleWebhook(context.Background(), body, h.signer.Sign(body))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if res.Outcome != OutcomeProcessed {
		t.Fatalf("outcome = %q, want processed", res.Outcome)
	}

	rows := h.ledger.snapshot()
	if len(rows) != 1 {
		t.Fatalf("ledger has %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Roll != "0001" || row.PaymentID != "pay_1" || row.Amount.String() != "500" {
		t.Errorf("row = roll %q payment %q amount %s", row.Roll, row.PaymentID, row.Amount)
	}
	if row.Name != "A" || row.Phone != "9876543210" || row.DOB != "2000-01-01" || row.Guardian != "G" || row.Address != "X" {
		t.Errorf("row registrant fields = %+v", row)
	}

	msgs := h.channel.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].To != "919876543210@s.whatsapp.net" {
		t.Errorf("To = %q", msgs[0].To)
	}
	if !strings.Contains(msgs[0].Text, "0001") {
		t.Errorf("message missing roll number:\n%s", msgs[0].Text)
	}
	if res.Delivery == nil || res.Delivery.Sent != 1 || res.NotifyErr != nil {
		t.Errorf("delivery = %+v, err = %v", res.Delivery, res.NotifyErr)
	}

	want := []string{events.TopicRegistrationRecorded, events.TopicNotificationSent}
	if got := h.pub.topics(); !slices.Equal(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
	if got := testutil.ToFloat64(h.metrics.events.WithLabelValues("processed")); got != 1 {
		t.Errorf("processed counter = %v", got)
	}
	if got := testutil.ToFloat64(h.metrics.notifications.WithLabelValues("sent")); got != 1 {
		t.Errorf("sent counter = %v", got)
	}
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	body := webhookBody("pay_1", "9876543210")

	for _, sig := range []string{"", "deadbeef", verify.New("other").Sign(body)} {
		_, err := h.proc.HandleWebhook(context.Background(), body, sig)
		if !errors.Is(err, ErrAuthentication) {
			t.Errorf("sig %q: err = %v, want ErrAuthentication", sig, err)
		}
	}
	if n := len(h.ledger.snapshot()); n != 0 {
		t.Errorf("ledger has %d rows after rejected webhooks", n)
	}
	if n := len(h.channel.messages()); n != 0 {
		t.Errorf("sent %d messages after rejected webhooks", n)
	}
}

func TestHandleWebhook_Malformed(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	for _, body := range [][]byte{[]byte(`not json`), []byte(`{"payment":{}}`)} {
		res, err := h.proc.HandleWebhook(context.Background(), body, h.signer.Sign(body))
		if err == nil || res != nil {
			t.Errorf("body %s: res=%v err=%v, want error", body, res, err)
		}
	}
}

func TestProcess_Ignored(t *testing.T) {
	for _, tc := range []struct {
		name string
		evt  *model.PaymentEvent
	}{
		{"wrong kind", &model.PaymentEvent{Kind: "payment.failed", PaymentID: "pay_1", Notes: model.Notes{"name": "A", "whatsapp_number": "9876543210"}}},
		{"missing name", &model.PaymentEvent{Kind: model.EventPaymentCaptured, PaymentID: "pay_1", Notes: model.Notes{"whatsapp_number": "9876543210"}}},
		{"missing phone", &model.PaymentEvent{Kind: model.EventPaymentCaptured, PaymentID: "pay_1", Notes: model.Notes{"name": "A"}}},
		{"empty notes", &model.PaymentEvent{Kind: model.EventPaymentCaptured, PaymentID: "pay_1", Notes: model.Notes{}}},
		{"missing payment id", &model.PaymentEvent{Kind: model.EventPaymentCaptured, Notes: model.Notes{"name": "A", "whatsapp_number": "9876543210"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, sequence.PolicyCount, 0)
			res, err := h.proc.Process(context.Background(), tc.evt)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if res.Outcome != OutcomeIgnored || !errors.Is(res.Reason, ErrIneligible) {
				t.Errorf("result = %+v", res)
			}
			if len(h.ledger.snapshot()) != 0 || len(h.channel.messages()) != 0 {
				t.Error("ignored event had side effects")
			}
			if got := h.pub.topics(); !slices.Equal(got, []string{events.TopicEventIgnored}) {
				t.Errorf("published %v", got)
			}
		})
	}
}

func TestProcess_Redelivery(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	body := webhookBody("pay_1", "9876543210")
	sig := h.signer.Sign(body)

	first, err := h.proc.HandleWebhook(context.Background(), body, sig)
	if err != nil || first.Outcome != OutcomeProcessed {
		t.Fatalf("first delivery: %+v, %v", first, err)
	}
	for _i := 0; _i < 3; _i++ {
		res, err := h.proc.HandleWebhook(context.Background(), body, sig)
		if err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if res.Outcome != OutcomeDuplicate || !errors.Is(res.Reason, ErrDuplicate) {
			t.Errorf("redelivery result = %+v", res)
		}
	}
	if n := len(h.ledger.snapshot()); n != 1 {
		t.Errorf("ledger has %d rows, want 1", n)
	}
	if n := len(h.channel.messages()); n != 1 {
		t.Errorf("sent %d messages, want 1", n)
	}
}

func TestProcess_AppendDuplicateIsDuplicate(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	h.ledger.skipDedup = true

	if _, err := h.proc.Process(context.Background(), captured("pay_1")); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := h.proc.Process(context.Background(), captured("pay_1"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Errorf("outcome = %q, want duplicate", res.Outcome)
	}
	if n := len(h.channel.messages()); n != 1 {
		t.Errorf("sent %d messages, want 1", n)
	}
}

func TestProcess_SequentialContiguous(t *testing.T) {
	for _, tc := range []struct {
		policy sequence.Policy
		base   int
		first  int
	}{
		{sequence.PolicyCount, 0, 1},
		{sequence.PolicyCount, 100, 101},
		{sequence.PolicyMax, 0, 1},
		{sequence.PolicyMax, 500, 501},
	} {
		t.Run(fmt.Sprintf("%s/%d", tc.policy, tc.base), func(t *testing.T) {
			h := newHarness(t, tc.policy, tc.base)
			for i := 0; i < 12; i++ {
				res, err := h.proc.Process(context.Background(), captured(fmt.Sprintf("pay_%d", i)))
				if err != nil || res.Outcome != OutcomeProcessed {
					t.Fatalf("event %d: %+v, %v", i, res, err)
				}
			}
			for i, row := range h.ledger.snapshot() {
				want := model.RollNumber(tc.first + i).String()
				if row.Roll != want {
					t.Errorf("row %d roll = %q, want %q", i, row.Roll, want)
				}
			}
		})
	}
}

func TestProcess_ConcurrentDistinctContiguous(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	const n = 25

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.proc.Process(context.Background(), captured(fmt.Sprintf("pay_%d", i))); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	rows := h.ledger.snapshot()
	if len(rows) != n {
		t.Fatalf("ledger has %d rows, want %d", len(rows), n)
	}
	rolls := make([]string, len(rows))
	for i, r := range rows {
		rolls[i] = r.Roll
	}
	slices.Sort(rolls)
	for i, r := range rolls {
		if want := model.RollNumber(i + 1).String(); r != want {
			t.Fatalf("sorted rolls[%d] = %q, want %q (all: %v)", i, r, want, rolls)
		}
	}
}

func TestProcess_ConcurrentRedelivery(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)

	var wg sync.WaitGroup
	for _i := 0; _i < 10; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.proc.Process(context.Background(), captured("pay_same")); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(h.ledger.snapshot()); n != 1 {
		t.Errorf("ledger has %d rows, want 1", n)
	}
}

func TestProcess_LedgerFailures(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(*mockLedger)
	}{
		{"duplicate check", func(m *mockLedger) { m.containsErr = errBackend }},
		{"roll stats", func(m *mockLedger) { m.statsErr = errBackend }},
		{"append", func(m *mockLedger) { m.appendErr = errBackend }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, sequence.PolicyCount, 0)
			tc.setup(h.ledger)

			res, err := h.proc.Process(context.Background(), captured("pay_1"))
			if !errors.Is(err, ErrLedgerUnavailable) || !errors.Is(err, errBackend) {
				t.Fatalf("err = %v, want ErrLedgerUnavailable wrapping backend error", err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if n := len(h.channel.messages()); n != 0 {
				t.Errorf("sent %d messages after ledger failure", n)
			}
			if got := testutil.ToFloat64(h.metrics.events.WithLabelValues("failed")); got != 1 {
				t.Errorf("failed counter = %v", got)
			}
		})
	}
}

func TestProcess_DuplicateRollIsLedgerFailure(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	h.ledger.appendErr = fmt.Errorf("%w: roll 0001", store.ErrDuplicateRoll)

	_, err := h.proc.Process(context.Background(), captured("pay_1"))
	if !errors.Is(err, ErrLedgerUnavailable) || !errors.Is(err, store.ErrDuplicateRoll) {
		t.Fatalf("err = %v", err)
	}
}

func TestProcess_InvalidRecipientKeepsRow(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	body := webhookBody("pay_1", "12345")

	res, err := h.proc.HandleWebhook(context.Background(), body, h.signer.Sign(body))
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if res.Outcome != OutcomeProcessed || !errors.Is(res.NotifyErr, ErrInvalidRecipient) {
		t.Errorf("result = %+v, notify err = %v", res, res.NotifyErr)
	}
	if n := len(h.ledger.snapshot()); n != 1 {
		t.Errorf("ledger has %d rows, want 1", n)
	}
	if n := len(h.channel.messages()); n != 0 {
		t.Errorf("sent %d messages to an invalid recipient", n)
	}
	want := []string{events.TopicRegistrationRecorded, events.TopicNotificationFailed}
	if got := h.pub.topics(); !slices.Equal(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
	if got := testutil.ToFloat64(h.metrics.notifications.WithLabelValues("invalid_recipient")); got != 1 {
		t.Errorf("invalid_recipient counter = %v", got)
	}
}

func TestProcess_ChannelFailureKeepsRow(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	h.channel.err = errors.New("bridge offline")

	res, err := h.proc.Process(context.Background(), captured("pay_1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Outcome != OutcomeProcessed || !errors.Is(res.NotifyErr, ErrChannelUnavailable) {
		t.Errorf("result = %+v, notify err = %v", res, res.NotifyErr)
	}
	if n := len(h.ledger.snapshot()); n != 1 {
		t.Errorf("ledger has %d rows, want 1", n)
	}
	if got := testutil.ToFloat64(h.metrics.notifications.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed counter = %v", got)
	}
}

func TestProcess_PublishFailureIgnored(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	h.pub.err = errors.New("nats down")

	res, err := h.proc.Process(context.Background(), captured("pay_1"))
	if err != nil || res.Outcome != OutcomeProcessed {
		t.Fatalf("Process: %+v, %v", res, err)
	}
}

func TestProcess_LedgerTimeout(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	h.proc.ledgerTimeout = time.Millisecond
	h.proc.ledger = blockingLedger{h.ledger}

	_, err := h.proc.Process(context.Background(), captured("pay_1"))
	if !errors.Is(err, ErrLedgerUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ledger timeout", err)
	}
}

// blockingLedger never answers ContainsPayment before the context ends.
type blockingLedger struct{ *mockLedger }

func (blockingLedger) ContainsPayment(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestSendManual(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	c := notify.Confirmation{
		OrderID:    "MANUAL_ORDER",
		PaymentID:  "MANUAL_PAYMENT",
		Roll:       42,
		Amount:     50000,
		Currency:   "INR",
		Method:     "manual",
		Contact:    "9876543210",
		Registrant: model.Registrant{Name: "A", WhatsApp: "9876543210"},
	}
	d, err := h.proc.SendManual(context.Background(), c)
	if err != nil {
		t.Fatalf("SendManual: %v", err)
	}
	if d.Sent != 1 {
		t.Errorf("Sent = %d", d.Sent)
	}
	if n := len(h.ledger.snapshot()); n != 0 {
		t.Errorf("manual send recorded %d rows", n)
	}
	if msgs := h.channel.messages(); !strings.Contains(msgs[0].Text, "0042") {
		t.Errorf("manual message missing roll:\n%s", msgs[0].Text)
	}
}

func TestRows(t *testing.T) {
	h := newHarness(t, sequence.PolicyCount, 0)
	for i := 0; i < 3; i++ {
		if _, err := h.proc.Process(context.Background(), captured(fmt.Sprintf("pay_%d", i))); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	rows, err := h.proc.Rows(context.Background())
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 3 || rows[0].PaymentID != "pay_0" || rows[2].PaymentID != "pay_2" {
		t.Errorf("rows out of order: %v", rows)
	}
}

func TestResult_JSON(t *testing.T) {
	res := &Result{Outcome: OutcomeIgnored, PaymentID: "pay_1", Reason: ErrIneligible}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"outcome":"ignored","payment_id":"pay_1"}` {
		t.Errorf("json = %s", data)
	}
}
