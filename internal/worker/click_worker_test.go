package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"svinn/internal/amqp"
	"svinn/internal/core"
	"svinn/internal/gateway/memory"
	"svinn/internal/services"
)

type failingApplier struct{ err error }

func (f failingApplier) Apply(context.Context, *amqp.ClickMessage) error { return f.err }

func TestClickWorker_AppliesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	w := NewClickWorker(services.NewClickService(store, nil, nil), 100, time.Minute)

	msg := amqp.NewClickMessage("2024-04-01", core.CategoryTwo, 1)
	for i := 0; i < 3; i++ {
		if err := w.HandleClickMessage(ctx, msg); err != nil {
			t.Fatalf("HandleClickMessage: %v", err)
		}
	}

	rows, _ := store.FetchDailyCounters(ctx, 7)
	if len(rows) != 1 || rows[0].Two != 1 {
		t.Fatalf("expected a single applied click, got %+v", rows)
	}
	if s := w.Stats(); s.Applied != 1 || s.Duplicates != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestClickWorker_FailureIsRetriable(t *testing.T) {
	boom := errors.New("db down")
	w := NewClickWorker(failingApplier{err: boom}, 0, 0)
	msg := amqp.NewClickMessage("2024-04-01", core.CategoryOne, 1)

	if err := w.HandleClickMessage(context.Background(), msg); !errors.Is(err, boom) {
		t.Fatalf("expected applier error, got %v", err)
	}
	// A failed message must not be remembered as seen.
	if _, dup := w.seen.Get(msg.ID); dup {
		t.Fatal("failed message recorded as seen")
	}
	if s := w.Stats(); s.Failed != 1 || s.Applied != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
