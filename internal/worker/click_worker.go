package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"svinn/internal/amqp"
	"svinn/internal/cache"
)

// Applier writes a click message to the counters table.
type Applier interface {
	Apply(ctx context.Context, msg *amqp.ClickMessage) error
}

// ClickWorker applies queued clicks. Message ids seen recently are skipped,
// so a redelivery after a lost ack does not count the click twice.
type ClickWorker struct {
	applier Applier
	seen    *cache.LRUCache[struct{}]

	applied    atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func NewClickWorker(applier Applier, dedupSize int, dedupTTL time.Duration) *ClickWorker {
	if dedupSize <= 0 {
		dedupSize = 10000
	}
	if dedupTTL <= 0 {
		dedupTTL = time.Hour
	}
	return &ClickWorker{
		applier: applier,
		seen:    cache.NewLRUCache[struct{}](dedupSize, dedupTTL),
	}
}

// Seen exposes the dedup cache so it can be registered for cleanup.
func (w *ClickWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleClickMessage processes a single click message from AMQP
func (w *ClickWorker) HandleClickMessage(ctx context.Context, msg *amqp.ClickMessage) error {
	if msg.ID != "" {
		if _, dup := w.seen.Get(msg.ID); dup {
			w.duplicates.Add(1)
			slog.InfoContext(ctx, "Skipping duplicate click message", "message_id", msg.ID)
			return nil
		}
	}

	if err := w.applier.Apply(ctx, msg); err != nil {
		w.failed.Add(1)
		return err
	}

	if msg.ID != "" {
		w.seen.Set(msg.ID, struct{}{})
	}
	w.applied.Add(1)
	return nil
}

// Stats reports counts since start.
type Stats struct {
	Applied    int64
	Duplicates int64
	Failed     int64
}

func (w *ClickWorker) Stats() Stats {
	return Stats{
		Applied:    w.applied.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}

// ReportStats logs Stats every interval until ctx is done.
func (w *ClickWorker) ReportStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := w.Stats()
			slog.InfoContext(ctx, "Click worker stats",
				"applied", s.Applied,
				"duplicates", s.Duplicates,
				"failed", s.Failed)
		}
	}
}
