package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type DailyClick struct {
	Day   string
	One   int64
	Two   int64
	Three int64
	Four  int64
}

type UserRow struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    int64
	DisplayName  string
	Approved     int64
}

const listDailyClicks = `select day, one, two, three, four from daily_clicks order by day desc limit ?`

func (q *Queries) ListDailyClicks(ctx context.Context, limit int64) ([]DailyClick, error) {
	rows, err := q.db.QueryContext(ctx, listDailyClicks, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DailyClick
	for rows.Next() {
		var i DailyClick
		if err := rows.Scan(&i.Day, &i.One, &i.Two, &i.Three, &i.Four); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Column names are fixed; only the values are bound.
var incrementDailyClicks = map[string]string{
	"one":   `insert into daily_clicks (day, one) values (?, ?) on conflict(day) do update set one = one + excluded.one`,
	"two":   `insert into daily_clicks (day, two) values (?, ?) on conflict(day) do update set two = two + excluded.two`,
	"three": `insert into daily_clicks (day, three) values (?, ?) on conflict(day) do update set three = three + excluded.three`,
	"four":  `insert into daily_clicks (day, four) values (?, ?) on conflict(day) do update set four = four + excluded.four`,
}

func (q *Queries) IncrementDailyClicks(ctx context.Context, day, column string, delta int64) error {
	query, ok := incrementDailyClicks[column]
	if !ok {
		return fmt.Errorf("unknown counter column %q", column)
	}
	_, err := q.db.ExecContext(ctx, query, day, delta)
	return err
}

const upsertDailyClicks = `insert into daily_clicks (day, one, two, three, four) values (?, ?, ?, ?, ?)
on conflict(day) do update set one = excluded.one, two = excluded.two, three = excluded.three, four = excluded.four`

func (q *Queries) UpsertDailyClicks(ctx context.Context, arg DailyClick) error {
	_, err := q.db.ExecContext(ctx, upsertDailyClicks, arg.Day, arg.One, arg.Two, arg.Three, arg.Four)
	return err
}

const selectUser = `select u.id, u.email, u.password_hash, u.created_at, coalesce(p.display_name, ''), coalesce(p.approved, 0)
from users u left join profiles p on p.id = u.id `

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, selectUser+`where u.email = ?`, email)
	var i UserRow
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt, &i.DisplayName, &i.Approved)
	return i, err
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (UserRow, error) {
	row := q.db.QueryRowContext(ctx, selectUser+`where u.id = ?`, id)
	var i UserRow
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt, &i.DisplayName, &i.Approved)
	return i, err
}

const insertUser = `insert into users (id, email, password_hash, created_at) values (?, ?, ?, ?)`

func (q *Queries) InsertUser(ctx context.Context, arg UserRow) error {
	_, err := q.db.ExecContext(ctx, insertUser, arg.ID, arg.Email, arg.PasswordHash, arg.CreatedAt)
	return err
}

const insertProfile = `insert into profiles (id, display_name, approved) values (?, ?, ?)`

func (q *Queries) InsertProfile(ctx context.Context, id, displayName string, approved int64) error {
	_, err := q.db.ExecContext(ctx, insertProfile, id, displayName, approved)
	return err
}

const getProfileApproved = `select approved from profiles where id = ?`

func (q *Queries) GetProfileApproved(ctx context.Context, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getProfileApproved, id)
	var approved int64
	err := row.Scan(&approved)
	return approved, err
}

const setProfileApproved = `update profiles set approved = ? where id = ?`

func (q *Queries) SetProfileApproved(ctx context.Context, approved int64, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, setProfileApproved, approved, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
