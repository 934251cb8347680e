package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"svinn/internal/core"
)

func TestFetchDailyCountersOrdersNewestFirstAndLimits(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, d := range []string{"2024-01-02", "2024-01-04", "2024-01-01", "2024-01-03"} {
		if err := s.UpsertDailyRecord(ctx, core.DailyRecord{Day: d, One: 1}); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}
	got, err := s.FetchDailyCounters(ctx, 3)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 || got[0].Day != "2024-01-04" || got[2].Day != "2024-01-02" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestIncrementCounter(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.IncrementCounter(ctx, "2024-05-01", core.CategoryThree, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.IncrementCounter(ctx, "2024-05-01", core.CategoryThree, 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	rows, _ := s.FetchDailyCounters(ctx, 7)
	if len(rows) != 1 || rows[0].Three != 3 || rows[0].One != 0 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if err := s.IncrementCounter(ctx, "2024-05-01", core.CategoryOne, -1); !errors.Is(err, core.ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}
	if err := s.IncrementCounter(ctx, "bad", core.CategoryOne, 1); !errors.Is(err, core.ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
}

func TestUsersAndApproval(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateUser(ctx, core.User{Email: " Admin@Example.com ", PasswordHash: "h"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateUser(ctx, core.User{Email: "admin@example.com"}); err == nil {
		t.Fatalf("expected duplicate email error")
	}
	u, err := s.FindUserByEmail(ctx, "ADMIN@example.com")
	if err != nil || u.ID == "" {
		t.Fatalf("find: %+v %v", u, err)
	}
	ok, err := s.IsApproved(ctx, u.ID)
	if err != nil || ok {
		t.Fatalf("new user approved=%v err=%v", ok, err)
	}
	if err := s.SetApproved(ctx, u.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if ok, _ := s.IsApproved(ctx, u.ID); !ok {
		t.Fatalf("expected approved")
	}
	if ok, err := s.IsApproved(ctx, "missing"); ok || err != nil {
		t.Fatalf("IsApproved(missing) = %v, %v; want false, nil", ok, err)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("empty dir: %v", err)
	}
	if rows, _ := s.FetchDailyCounters(context.Background(), 7); len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("seed_daily_clicks.csv", "# day,one,two,three,four\n2024-01-01,2,0,1,0\n2024-01-02,0,3,,1\n")
	mustWrite("seed_users.csv", "admin@example.com,$2a$10$hash,Admin,true\n")

	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	rows, _ := s.FetchDailyCounters(context.Background(), 7)
	if len(rows) != 2 || rows[0].Two != 3 || rows[0].Three != 0 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	u, err := s.FindUserByEmail(context.Background(), "admin@example.com")
	if err != nil || !u.Approved || u.DisplayName != "Admin" {
		t.Fatalf("unexpected user: %+v %v", u, err)
	}

	mustWrite("seed_daily_clicks.csv", "2024-01-01,-1\n")
	if _, err := NewFromFiles(dir); err == nil {
		t.Fatalf("expected error for negative seed value")
	}
}
