package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/rollcall/internal/idgen"
	"github.com/alfredjeanlab/rollcall/internal/retry"
)

// Notifier formats confirmations and delivers them over a Channel with
// bounded retry. Messages to the same recipient are sent one delivery at a
// time so the receipt always precedes its invite link.
type Notifier struct {
	formatter   *Formatter
	channel     Channel
	policy      retry.Policy
	sendTimeout time.Duration
	logger      *slog.Logger

	locks keyedMutex
}

// NewNotifier returns a Notifier. A zero sendTimeout leaves each attempt
// bounded only by the caller's context.
func NewNotifier(f *Formatter, ch Channel, policy retry.Policy, sendTimeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		formatter:   f,
		channel:     ch,
		policy:      policy,
		sendTimeout: sendTimeout,
		logger:      logger,
		locks:       keyedMutex{locks: make(map[string]*refLock)},
	}
}

// Delivery describes one confirmation's messages.
type Delivery struct {
	ID   string `json:"delivery_id"`
	To   string `json:"to"`
	Sent int    `json:"sent"` // messages accepted by the channel
}

// Deliver formats c and sends its messages in order. An unusable phone
// number fails with ErrInvalidRecipient before anything is sent; a send that
// exhausts its retries fails with ErrChannelUnavailable and stops the
// remaining messages.
func (n *Notifier) Deliver(ctx context.Context, c Confirmation) (Delivery, error) {
	msgs, err := n.formatter.Format(c)
	if err != nil {
		return Delivery{}, err
	}
	d := Delivery{To: msgs[0].To}
	if d.ID, err = idgen.DeliveryID(); err != nil {
		return d, err
	}

	unlock := n.locks.Lock(d.To)
	defer unlock()

	for i := range msgs {
		msgs[i].DeliveryID = d.ID
		if msgs[i].ID, err = idgen.MessageID(); err != nil {
			return d, err
		}
		if err := n.send(ctx, msgs[i]); err != nil {
			return d, fmt.Errorf("%w: message %d of %d to %s: %w", ErrChannelUnavailable, i+1, len(msgs), d.To, err)
		}
		d.Sent++
	}
	return d, nil
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	p := n.policy
	p.OnRetry = func(attempt int, err error) {
		n.logger.Warn("message send failed, retrying",
			"message_id", msg.ID,
			"to", msg.To,
			"attempt", attempt,
			"err", err,
		)
	}
	return retry.Do(ctx, p, func(ctx context.Context) error {
		if n.sendTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, n.sendTimeout)
			defer cancel()
		}
		return n.channel.Send(ctx, msg)
	})
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
