// Package adapters decorates gateway backends.
package adapters

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"svinn/internal/core"
	"svinn/internal/gateway"
	"svinn/internal/log"
)

// slowCall is the duration above which a successful call is logged.
const slowCall = 2 * time.Second

// InstrumentedBackend times every gateway call and logs failures and slow
// calls. Lookups that end in a not-found error are not failures.
type InstrumentedBackend struct {
	next   gateway.Backend
	name   string
	logger *slog.Logger

	calls    atomic.Int64
	failures atomic.Int64
}

var _ gateway.Backend = (*InstrumentedBackend)(nil)

// Instrument wraps next. name identifies the backend in log lines.
func Instrument(next gateway.Backend, name string, logger *slog.Logger) *InstrumentedBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &InstrumentedBackend{
		next:   next,
		name:   name,
		logger: logger.With(log.FieldComponent, log.ComponentBackend, "backend", name),
	}
}

// Unwrap returns the decorated backend.
func (b *InstrumentedBackend) Unwrap() gateway.Backend { return b.next }

// Stats is the number of calls and failed calls so far.
type Stats struct {
	Calls    int64
	Failures int64
}

func (b *InstrumentedBackend) Stats() Stats {
	return Stats{Calls: b.calls.Load(), Failures: b.failures.Load()}
}

func (b *InstrumentedBackend) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	b.calls.Add(1)
	elapsed := time.Since(start)
	attrs = append(attrs, log.FieldOperation, op, log.FieldDuration, elapsed.Milliseconds())

	switch {
	case err != nil && !isNotFound(err):
		b.failures.Add(1)
		b.logger.ErrorContext(ctx, "Backend call failed", append(attrs, log.FieldError, err)...)
	case elapsed > slowCall:
		b.logger.WarnContext(ctx, "Slow backend call", attrs...)
	default:
		b.logger.DebugContext(ctx, "Backend call", attrs...)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrUserNotFound)
}

func (b *InstrumentedBackend) FetchDailyCounters(ctx context.Context, limitDays int) ([]core.DailyRecord, error) {
	start := time.Now()
	rows, err := b.next.FetchDailyCounters(ctx, limitDays)
	b.observe(ctx, log.OpFetch, start, err, log.FieldWindow, limitDays, log.FieldRecordCount, len(rows))
	return rows, err
}

func (b *InstrumentedBackend) IncrementCounter(ctx context.Context, day string, c core.Category, delta int) error {
	start := time.Now()
	err := b.next.IncrementCounter(ctx, day, c, delta)
	b.observe(ctx, log.OpIncrement, start, err, log.FieldDay, day, log.FieldCategory, c.Key(), log.FieldDelta, delta)
	return err
}

func (b *InstrumentedBackend) UpsertDailyRecord(ctx context.Context, r core.DailyRecord) error {
	start := time.Now()
	err := b.next.UpsertDailyRecord(ctx, r)
	b.observe(ctx, log.OpUpdate, start, err, log.FieldDay, r.Day)
	return err
}

func (b *InstrumentedBackend) IsApproved(ctx context.Context, userID string) (bool, error) {
	start := time.Now()
	ok, err := b.next.IsApproved(ctx, userID)
	b.observe(ctx, log.OpRead, start, err, log.FieldUserID, userID)
	return ok, err
}

func (b *InstrumentedBackend) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	start := time.Now()
	u, err := b.next.FindUserByEmail(ctx, email)
	b.observe(ctx, log.OpRead, start, err)
	return u, err
}

func (b *InstrumentedBackend) FindUserByID(ctx context.Context, id string) (core.User, error) {
	start := time.Now()
	u, err := b.next.FindUserByID(ctx, id)
	b.observe(ctx, log.OpRead, start, err, log.FieldUserID, id)
	return u, err
}

func (b *InstrumentedBackend) CreateUser(ctx context.Context, u core.User) error {
	start := time.Now()
	err := b.next.CreateUser(ctx, u)
	b.observe(ctx, log.OpCreate, start, err)
	return err
}

func (b *InstrumentedBackend) SetApproved(ctx context.Context, userID string, approved bool) error {
	start := time.Now()
	err := b.next.SetApproved(ctx, userID, approved)
	b.observe(ctx, log.OpUpdate, start, err, log.FieldUserID, userID, "approved", approved)
	return err
}

func (b *InstrumentedBackend) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}
