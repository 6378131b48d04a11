// Package sync mirrors the registration ledger to external storage on a
// fixed interval.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Snapshot is one encoded export of the ledger.
type Snapshot struct {
	Format Format
	Data   []byte
}

// Destination is the interface for a sync target.
type Destination interface {
	Write(ctx context.Context, snap Snapshot) error
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	ledger       RowLister
	destinations []Destination
	formats      []Format
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports the ledger in every format to
// the given destinations at the specified interval.
func NewScheduler(l RowLister, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		ledger:       l,
		destinations: destinations,
		formats:      []Format{FormatJSONL, FormatCSV},
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports the ledger and writes every snapshot to every
// destination. Failures are logged; a failed destination does not stop the
// others.
func (s *Scheduler) SyncOnce(ctx context.Context) {
	snaps := make([]Snapshot, 0, len(s.formats))
	for _, f := range s.formats {
		var buf bytes.Buffer
		if err := Export(ctx, s.ledger, f, &buf); err != nil {
			s.logger.Error("sync export failed", "format", f, "err", err)
			return
		}
		snaps = append(snaps, Snapshot{Format: f, Data: buf.Bytes()})
	}

	failed := 0
	for i, dest := range s.destinations {
		for _, snap := range snaps {
			if err := dest.Write(ctx, snap); err != nil {
				failed++
				s.logger.Error("sync destination write failed", "destination", i, "format", snap.Format, "err", err)
			}
		}
	}

	s.logger.Info("sync completed", "destinations", len(s.destinations), "snapshots", len(snaps), "failed", failed)
}
