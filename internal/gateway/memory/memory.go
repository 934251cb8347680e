package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"svinn/internal/core"
	"svinn/internal/gateway"
)

var _ gateway.Backend = (*Store)(nil)

// Store is an in-process backend used for development and tests.
type Store struct {
	mu      sync.Mutex
	days    map[string]core.DailyRecord
	users   map[string]core.User
	byEmail map[string]string
}

func New() *Store {
	return &Store{
		days:    map[string]core.DailyRecord{},
		users:   map[string]core.User{},
		byEmail: map[string]string{},
	}
}

// NewFromFiles seeds a Store from base/seed_daily_clicks.csv
// (day,one,two,three,four) and base/seed_users.csv
// (email,password_hash,display_name,approved). Missing files are ignored.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	for i, line := range readLines(filepath.Join(base, "seed_daily_clicks.csv")) {
		r, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("seed_daily_clicks.csv line %d: %w", i+1, err)
		}
		if err := s.UpsertDailyRecord(context.Background(), r); err != nil {
			return nil, fmt.Errorf("seed_daily_clicks.csv line %d: %w", i+1, err)
		}
	}
	for i, line := range readLines(filepath.Join(base, "seed_users.csv")) {
		cols := splitCSV(line)
		if len(cols) < 2 {
			return nil, fmt.Errorf("seed_users.csv line %d: want email,password_hash[,display_name,approved]", i+1)
		}
		u := core.User{Email: cols[0], PasswordHash: cols[1]}
		if len(cols) > 2 {
			u.DisplayName = cols[2]
		}
		if len(cols) > 3 {
			u.Approved, _ = strconv.ParseBool(cols[3])
		}
		if err := s.CreateUser(context.Background(), u); err != nil {
			return nil, fmt.Errorf("seed_users.csv line %d: %w", i+1, err)
		}
	}
	return s, nil
}

// FetchDailyCounters mirrors "order by day desc limit N".
func (s *Store) FetchDailyCounters(_ context.Context, limitDays int) ([]core.DailyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DailyRecord, 0, len(s.days))
	for _, r := range s.days {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	if limitDays >= 0 && len(out) > limitDays {
		out = out[:limitDays]
	}
	return out, nil
}

func (s *Store) IncrementCounter(_ context.Context, day string, c core.Category, delta int) error {
	if _, err := core.ParseDay(day); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(c))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.days[day]
	r.Day = day
	switch c {
	case core.CategoryOne:
		r.One += delta
	case core.CategoryTwo:
		r.Two += delta
	case core.CategoryThree:
		r.Three += delta
	case core.CategoryFour:
		r.Four += delta
	}
	if err := r.Validate(); err != nil {
		return err
	}
	s.days[day] = r
	return nil
}

func (s *Store) UpsertDailyRecord(_ context.Context, r core.DailyRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[r.Day] = r
	return nil
}

func (s *Store) IsApproved(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	return u.Approved, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindUserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrUserNotFound
	}
	return u, nil
}

// CreateUser stores u, assigning an id and creation time when missing.
func (s *Store) CreateUser(_ context.Context, u core.User) error {
	email := normalizeEmail(u.Email)
	if email == "" {
		return fmt.Errorf("create user: empty email")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return fmt.Errorf("create user: email %s already registered", email)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = email
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

func (s *Store) SetApproved(_ context.Context, userID string, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return core.ErrUserNotFound
	}
	u.Approved = approved
	s.users[userID] = u
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func parseRecord(line string) (core.DailyRecord, error) {
	cols := splitCSV(line)
	if len(cols) == 0 {
		return core.DailyRecord{}, fmt.Errorf("empty line")
	}
	r := core.DailyRecord{Day: cols[0]}
	dst := []*int{&r.One, &r.Two, &r.Three, &r.Four}
	for i, p := range dst {
		if i+1 >= len(cols) || cols[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(cols[i+1])
		if err != nil {
			return core.DailyRecord{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		*p = n
	}
	return r, r.Validate()
}

func splitCSV(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
