// Package postgres is the hosted Postgres backend, reached through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svinn/internal/core"
	"svinn/internal/gateway"
)

var _ gateway.Backend = (*Repository)(nil)

// Repository wraps a pgx connection pool.
type Repository struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, pings it and applies migrations.
func New(ctx context.Context, databaseURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) FetchDailyCounters(ctx context.Context, limitDays int) ([]core.DailyRecord, error) {
	rows, err := r.pool.Query(ctx,
		`select day, one, two, three, four from daily_clicks order by day desc limit $1`, limitDays)
	if err != nil {
		return nil, fmt.Errorf("querying daily clicks: %w", err)
	}
	defer rows.Close()

	var out []core.DailyRecord
	for rows.Next() {
		var (
			day time.Time
			rec core.DailyRecord
		)
		if err := rows.Scan(&day, &rec.One, &rec.Two, &rec.Three, &rec.Four); err != nil {
			return nil, fmt.Errorf("scanning daily clicks: %w", err)
		}
		rec.Day = day.Format(core.DayLayout)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily clicks: %w", err)
	}
	return out, nil
}

// Column names are fixed; only the values are bound.
var incrementQueries = map[core.Category]string{
	core.CategoryOne:   `insert into daily_clicks (day, one) values ($1, $2) on conflict (day) do update set one = daily_clicks.one + excluded.one`,
	core.CategoryTwo:   `insert into daily_clicks (day, two) values ($1, $2) on conflict (day) do update set two = daily_clicks.two + excluded.two`,
	core.CategoryThree: `insert into daily_clicks (day, three) values ($1, $2) on conflict (day) do update set three = daily_clicks.three + excluded.three`,
	core.CategoryFour:  `insert into daily_clicks (day, four) values ($1, $2) on conflict (day) do update set four = daily_clicks.four + excluded.four`,
}

func (r *Repository) IncrementCounter(ctx context.Context, day string, c core.Category, delta int) error {
	d, err := core.ParseDay(day)
	if err != nil {
		return err
	}
	query, ok := incrementQueries[c]
	if !ok {
		return fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(c))
	}
	if _, err := r.pool.Exec(ctx, query, d, delta); err != nil {
		return fmt.Errorf("incrementing %s on %s: %w", c, day, err)
	}
	return nil
}

func (r *Repository) UpsertDailyRecord(ctx context.Context, rec core.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	d, _ := core.ParseDay(rec.Day)
	_, err := r.pool.Exec(ctx, `
		insert into daily_clicks (day, one, two, three, four) values ($1, $2, $3, $4, $5)
		on conflict (day) do update set one = excluded.one, two = excluded.two,
			three = excluded.three, four = excluded.four`,
		d, rec.One, rec.Two, rec.Three, rec.Four)
	if err != nil {
		return fmt.Errorf("upserting daily clicks %s: %w", rec.Day, err)
	}
	return nil
}

func (r *Repository) IsApproved(ctx context.Context, userID string) (bool, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return false, nil
	}
	var approved bool
	err = r.pool.QueryRow(ctx, `select approved from profiles where id = $1`, id).Scan(&approved)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying profile approval: %w", err)
	}
	return approved, nil
}

const selectUser = `
	select u.id, u.email, u.password_hash, u.created_at, coalesce(p.display_name, ''), coalesce(p.approved, false)
	from users u left join profiles p on p.id = u.id `

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`where u.email = $1`, normalizeEmail(email)))
}

func (r *Repository) FindUserByID(ctx context.Context, id string) (core.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return core.User{}, core.ErrUserNotFound
	}
	return r.scanUser(r.pool.QueryRow(ctx, selectUser+`where u.id = $1`, uid))
}

func (r *Repository) scanUser(row pgx.Row) (core.User, error) {
	var (
		u  core.User
		id uuid.UUID
	)
	err := row.Scan(&id, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.DisplayName, &u.Approved)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scanning user: %w", err)
	}
	u.ID = id.String()
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return fmt.Errorf("create user: empty email")
	}
	id := uuid.New()
	if u.ID != "" {
		parsed, err := uuid.Parse(u.ID)
		if err != nil {
			return fmt.Errorf("create user: invalid id: %w", err)
		}
		id = parsed
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`insert into users (id, email, password_hash, created_at) values ($1, $2, $3, $4)`,
		id, u.Email, u.PasswordHash, u.CreatedAt); err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`insert into profiles (id, display_name, approved) values ($1, $2, $3)`,
		id, u.DisplayName, u.Approved); err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", id.String(), "approved", u.Approved)
	return nil
}

func (r *Repository) SetApproved(ctx context.Context, userID string, approved bool) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return core.ErrUserNotFound
	}
	tag, err := r.pool.Exec(ctx, `update profiles set approved = $1 where id = $2`, approved, id)
	if err != nil {
		return fmt.Errorf("updating profile approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrUserNotFound
	}
	slog.InfoContext(ctx, "Profile approval changed", "user_id", userID, "approved", approved)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
