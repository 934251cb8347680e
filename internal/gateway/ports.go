package gateway

import (
	"context"

	"svinn/internal/core"
)

// Ports for outbound adapters.
type (
	// CounterReader runs the daily counter query: newest first, at most
	// limitDays rows.
	CounterReader interface {
		FetchDailyCounters(ctx context.Context, limitDays int) ([]core.DailyRecord, error)
	}

	// CounterWriter applies kiosk clicks and seed data to the counters table.
	CounterWriter interface {
		// IncrementCounter adds delta to one category of day, creating the
		// row when it does not exist yet.
		IncrementCounter(ctx context.Context, day string, c core.Category, delta int) error
		// UpsertDailyRecord replaces the counts of r.Day.
		UpsertDailyRecord(ctx context.Context, r core.DailyRecord) error
	}

	// ApprovalReader answers the profiles.approved lookup. A user without a
	// profile is not approved; errors mean the lookup itself failed.
	ApprovalReader interface {
		IsApproved(ctx context.Context, userID string) (bool, error)
	}

	// UserStore holds dashboard accounts and their profiles.
	UserStore interface {
		FindUserByEmail(ctx context.Context, email string) (core.User, error)
		FindUserByID(ctx context.Context, id string) (core.User, error)
		CreateUser(ctx context.Context, u core.User) error
		SetApproved(ctx context.Context, userID string, approved bool) error
	}

	// Pinger reports whether the backend is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// Backend is everything a data backend must provide.
type Backend interface {
	CounterReader
	CounterWriter
	ApprovalReader
	UserStore
	Pinger
}
