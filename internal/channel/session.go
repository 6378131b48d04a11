// Package channel implements the messaging session confirmations are sent
// over. The session talks to a messaging bridge through NATS request/reply:
// each message is a request on "<prefix>.send" and the bridge answers with a
// Reply. The bridge announces pairing changes on "<prefix>.status".
//
// The session reconnects to NATS indefinitely. A bridge that reports itself
// logged out makes every send fail permanently until it announces "ready"
// again.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/retry"
)

// DefaultPrefix is the bridge subject prefix when none is configured.
const DefaultPrefix = "rollcall.bridge"

// openFlushTimeout bounds the status subscription round-trip when Open is
// given a context without a deadline.
const openFlushTimeout = 5 * time.Second

var (
	// ErrNotReady is returned by Send while the session is not connected.
	ErrNotReady = errors.New("session not ready")

	// ErrLoggedOut is returned by Send once the bridge has lost its pairing.
	// It is wrapped with retry.Permanent.
	ErrLoggedOut = errors.New("session logged out")

	// ErrClosed is returned by Open and Send after Close.
	ErrClosed = errors.New("session closed")
)

// Status values published by the bridge.
const (
	StatusReady     = "ready"
	StatusLoggedOut = "logged_out"
)

// Reply is the bridge's answer to a send request.
type Reply struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LoggedOut bool   `json:"logged_out,omitempty"`
}

// StatusUpdate is published by the bridge when its pairing changes.
type StatusUpdate struct {
	State string `json:"state"`
}

// Config configures a Session.
type Config struct {
	URL           string
	Prefix        string        // subject prefix, DefaultPrefix when empty
	ReconnectWait time.Duration // default 2s
	Logger        *slog.Logger
}

// Session is a long-lived connection to the messaging bridge.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	conn      *nats.Conn
	loggedOut bool
	closed    bool
	handlers  []func(error)
}

// New returns an unopened Session.
func New(cfg Config) *Session {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, logger: logger}
}

func (s *Session) sendSubject() string   { return s.cfg.Prefix + ".send" }
func (s *Session) statusSubject() string { return s.cfg.Prefix + ".status" }

// Open connects to NATS and starts listening for bridge status updates.
// Opening an open session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.conn != nil {
		return nil
	}

	opts := []nats.Option{
		nats.Name("rollcall-session"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(s.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			s.logger.Warn("session disconnected", "err", err)
			s.fireDisconnect(fmt.Errorf("%w: %v", ErrNotReady, err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("session reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			s.logger.Info("session closed")
		}),
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, nats.Timeout(time.Until(deadline)))
	}

	nc, err := nats.Connect(s.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connecting to bridge at %s: %w", s.cfg.URL, err)
	}
	if _, err := nc.Subscribe(s.statusSubject(), s.handleStatus); err != nil {
		nc.Close()
		return fmt.Errorf("subscribing to %s: %w", s.statusSubject(), err)
	}
	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, openFlushTimeout)
		defer cancel()
	}
	if err := nc.FlushWithContext(flushCtx); err != nil {
		nc.Close()
		return fmt.Errorf("flushing status subscription: %w", err)
	}
	s.conn = nc
	return nil
}

// Ready reports whether a send would currently be attempted.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed && !s.loggedOut && s.conn.IsConnected()
}

// OnDisconnect registers a handler called when the connection drops or the
// bridge logs out. Handlers run on NATS callback goroutines and must not
// block.
func (s *Session) OnDisconnect(handler func(err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Send delivers one message through the bridge. Transport failures and bridge
// rejections are retryable; a logged-out bridge is not.
func (s *Session) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	nc, closed, loggedOut := s.conn, s.closed, s.loggedOut
	s.mu.Unlock()

	switch {
	case closed:
		return retry.Permanent(ErrClosed)
	case loggedOut:
		return retry.Permanent(ErrLoggedOut)
	case nc == nil || !nc.IsConnected():
		return ErrNotReady
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshaling message: %w", err))
	}
	resp, err := nc.RequestWithContext(ctx, s.sendSubject(), data)
	if err != nil {
		return fmt.Errorf("sending message %s: %w", msg.ID, err)
	}

	var reply Reply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return fmt.Errorf("decoding bridge reply: %w", err)
	}
	switch {
	case reply.LoggedOut:
		s.setLoggedOut(true)
		return retry.Permanent(ErrLoggedOut)
	case !reply.OK:
		if reply.Error == "" {
			reply.Error = "unknown error"
		}
		return fmt.Errorf("bridge rejected message %s: %s", msg.ID, reply.Error)
	}
	return nil
}

// Close drains and closes the connection. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *Session) handleStatus(m *nats.Msg) {
	var st StatusUpdate
	if err := json.Unmarshal(m.Data, &st); err != nil {
		s.logger.Warn("ignoring malformed bridge status", "err", err)
		return
	}
	switch st.State {
	case StatusLoggedOut:
		s.setLoggedOut(true)
	case StatusReady:
		s.setLoggedOut(false)
	default:
		s.logger.Warn("ignoring unknown bridge status", "state", st.State)
	}
}

func (s *Session) setLoggedOut(v bool) {
	s.mu.Lock()
	changed := s.loggedOut != v
	s.loggedOut = v
	s.mu.Unlock()
	if !changed {
		return
	}
	if v {
		s.logger.Error("bridge logged out; sends disabled until re-paired")
		s.fireDisconnect(ErrLoggedOut)
		return
	}
	s.logger.Info("bridge ready")
}

func (s *Session) fireDisconnect(err error) {
	s.mu.Lock()
	handlers := append([]func(error){}, s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}
