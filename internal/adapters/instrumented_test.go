package adapters

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"svinn/internal/core"
	"svinn/internal/gateway/memory"
)

type brokenCounters struct {
	*memory.Store
}

func (brokenCounters) FetchDailyCounters(context.Context, int) ([]core.DailyRecord, error) {
	return nil, errors.New("connection reset")
}

func TestInstrumentedBackend(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store := memory.New()
	b := Instrument(store, "memory", logger)

	if err := b.IncrementCounter(ctx, "2024-01-02", core.CategoryOne, 2); err != nil {
		t.Fatalf("IncrementCounter: %v", err)
	}
	rows, err := b.FetchDailyCounters(ctx, 7)
	if err != nil || len(rows) != 1 || rows[0].One != 2 {
		t.Fatalf("FetchDailyCounters = %+v, %v", rows, err)
	}
	if _, err := b.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("FindUserByEmail err = %v", err)
	}

	if s := b.Stats(); s.Calls != 3 || s.Failures != 0 {
		t.Fatalf("Stats = %+v, want 3 calls and no failures", s)
	}
	if buf.Len() != 0 {
		t.Fatalf("healthy calls should not log at info:\n%s", buf.String())
	}
	if b.Unwrap() != store {
		t.Fatal("Unwrap should return the wrapped store")
	}

	broken := Instrument(brokenCounters{store}, "memory", logger)
	if _, err := broken.FetchDailyCounters(ctx, 30); err == nil {
		t.Fatal("expected error")
	}
	if s := broken.Stats(); s.Failures != 1 {
		t.Fatalf("Failures = %d, want 1", s.Failures)
	}
	out := buf.String()
	for _, want := range []string{"Backend call failed", "operation=fetch", "window_days=30", "component=backend", "connection reset"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}
