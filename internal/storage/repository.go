package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"svinn/internal/core"
	"svinn/internal/gateway"

	_ "modernc.org/sqlite"
)

var _ gateway.Backend = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FetchDailyCounters implements gateway.CounterReader
func (r *SQLiteRepository) FetchDailyCounters(ctx context.Context, limitDays int) ([]core.DailyRecord, error) {
	rows, err := r.queries.ListDailyClicks(ctx, int64(limitDays))
	if err != nil {
		return nil, fmt.Errorf("list daily clicks: %w", err)
	}
	out := make([]core.DailyRecord, len(rows))
	for i, row := range rows {
		out[i] = core.DailyRecord{
			Day:   row.Day,
			One:   int(row.One),
			Two:   int(row.Two),
			Three: int(row.Three),
			Four:  int(row.Four),
		}
	}
	return out, nil
}

// IncrementCounter implements gateway.CounterWriter
func (r *SQLiteRepository) IncrementCounter(ctx context.Context, day string, c core.Category, delta int) error {
	if _, err := core.ParseDay(day); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(c))
	}
	if err := r.queries.IncrementDailyClicks(ctx, day, c.Key(), int64(delta)); err != nil {
		return fmt.Errorf("increment %s on %s: %w", c, day, err)
	}
	slog.DebugContext(ctx, "Daily counter incremented", "day", day, "category", c.Key(), "delta", delta)
	return nil
}

// UpsertDailyRecord implements gateway.CounterWriter
func (r *SQLiteRepository) UpsertDailyRecord(ctx context.Context, rec core.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertDailyClicks(ctx, DailyClick{
		Day:   rec.Day,
		One:   int64(rec.One),
		Two:   int64(rec.Two),
		Three: int64(rec.Three),
		Four:  int64(rec.Four),
	})
	if err != nil {
		return fmt.Errorf("upsert daily clicks %s: %w", rec.Day, err)
	}
	return nil
}

// IsApproved implements gateway.ApprovalReader. A user without a profile
// row is not approved.
func (r *SQLiteRepository) IsApproved(ctx context.Context, userID string) (bool, error) {
	approved, err := r.queries.GetProfileApproved(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get profile approval: %w", err)
	}
	return approved != 0, nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return row.toCore(), nil
}

func (r *SQLiteRepository) FindUserByID(ctx context.Context, id string) (core.User, error) {
	row, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return row.toCore(), nil
}

// CreateUser inserts the user and its profile in one transaction.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return fmt.Errorf("create user: empty email")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.InsertUser(ctx, UserRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.Unix(),
	}); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if err := q.InsertProfile(ctx, u.ID, u.DisplayName, boolToInt(u.Approved)); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "approved", u.Approved)
	return nil
}

func (r *SQLiteRepository) SetApproved(ctx context.Context, userID string, approved bool) error {
	n, err := r.queries.SetProfileApproved(ctx, boolToInt(approved), userID)
	if err != nil {
		return fmt.Errorf("set profile approval: %w", err)
	}
	if n == 0 {
		return core.ErrUserNotFound
	}
	slog.InfoContext(ctx, "Profile approval changed", "user_id", userID, "approved", approved)
	return nil
}

func (u UserRow) toCore() core.User {
	return core.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DisplayName:  u.DisplayName,
		Approved:     u.Approved != 0,
		CreatedAt:    time.Unix(u.CreatedAt, 0).UTC(),
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
