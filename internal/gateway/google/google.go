package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"svinn/internal/core"
	"svinn/internal/gateway"
)

var _ gateway.Backend = (*Client)(nil)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID      string
	CountersSheet      string
	ProfilesSheet      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client reads and writes daily counters and profiles stored in a
// Google spreadsheet. Row lookups for writes are cached for a short time.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	countersSheet string
	profilesSheet string

	// writeMu spans the read, modify and write of a counter row.
	writeMu sync.Mutex

	mu                 sync.Mutex
	dayRows            map[string]int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var errNotInitialized = errors.New("sheets service not initialized")

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.CountersSheet == "" {
		cfg.CountersSheet = "DailyClicks"
	}
	if cfg.ProfilesSheet == "" {
		cfg.ProfilesSheet = "Profiles"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		countersSheet:      cfg.CountersSheet,
		profilesSheet:      cfg.ProfilesSheet,
		cacheValidDuration: 2 * time.Minute,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)

	var opt goption.ClientOption
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline service account credentials")
		opt = goption.WithCredentialsJSON([]byte(serviceAccountJSON))
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading service account credentials from file", "path", serviceAccountFile)
		opt = goption.WithCredentialsFile(serviceAccountFile)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx, opt, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c.svc == nil {
		return errNotInitialized
	}
	_, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}

// FetchDailyCounters reads the counters tab and returns at most limitDays
// rows, newest first.
func (c *Client) FetchDailyCounters(ctx context.Context, limitDays int) ([]core.DailyRecord, error) {
	values, err := c.readRange(ctx, c.countersSheet, "A:E")
	if err != nil {
		return nil, err
	}
	recs, err := parseCounterRows(values)
	if err != nil {
		return nil, err
	}
	c.storeRowIndex(values)

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Day > recs[j].Day })
	if limitDays >= 0 && len(recs) > limitDays {
		recs = recs[:limitDays]
	}
	return recs, nil
}

// IncrementCounter updates the day's cell in place or appends a new row.
// Writers within this process are serialized; the sheet itself has no
// row locking, so only one process may write counters.
func (c *Client) IncrementCounter(ctx context.Context, day string, cat core.Category, delta int) error {
	if _, err := core.ParseDay(day); err != nil {
		return err
	}
	if !cat.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidCategory, int(cat))
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rec, row, err := c.findDay(ctx, day)
	if err != nil {
		return err
	}
	rec.Day = day
	switch cat {
	case core.CategoryOne:
		rec.One += delta
	case core.CategoryTwo:
		rec.Two += delta
	case core.CategoryThree:
		rec.Three += delta
	case core.CategoryFour:
		rec.Four += delta
	}
	return c.writeDay(ctx, rec, row)
}

func (c *Client) UpsertDailyRecord(ctx context.Context, rec core.DailyRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	row, ok := c.cachedRow(rec.Day)
	if !ok {
		var err error
		if _, row, err = c.findDay(ctx, rec.Day); err != nil {
			return err
		}
	}
	return c.writeDay(ctx, rec, row)
}

// findDay reads the counters tab and returns day's record and sheet row
// (1-based). An absent day yields a zero record and the row after the last.
func (c *Client) findDay(ctx context.Context, day string) (core.DailyRecord, int, error) {
	values, err := c.readRange(ctx, c.countersSheet, "A:E")
	if err != nil {
		return core.DailyRecord{}, 0, err
	}
	c.storeRowIndex(values)
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] != day {
			continue
		}
		rec, err := parseCounterRow(cols)
		if err != nil {
			return core.DailyRecord{}, 0, err
		}
		return rec, i + 1, nil
	}
	return core.DailyRecord{}, len(values) + 1, nil
}

// writeDay writes rec to sheet row (1-based). Callers hold writeMu.
func (c *Client) writeDay(ctx context.Context, rec core.DailyRecord, row int) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if c.svc == nil {
		return errNotInitialized
	}
	rng := fmt.Sprintf("%s!A%d:E%d", c.countersSheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{rec.Day, rec.One, rec.Two, rec.Three, rec.Four}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.InvalidateRowCache()
		return fmt.Errorf("update %s: %w", rng, err)
	}

	c.mu.Lock()
	if c.dayRows == nil {
		c.dayRows = map[string]int{}
	}
	c.dayRows[rec.Day] = row
	c.mu.Unlock()
	return nil
}

func (c *Client) storeRowIndex(values [][]interface{}) {
	idx := make(map[string]int, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) > 0 && cols[0] != "" {
			idx[cols[0]] = i + 1
		}
	}
	c.mu.Lock()
	c.dayRows = idx
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
}

// InvalidateRowCache forces the next write to re-read the counters tab.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	c.dayRows = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// cachedRow returns the sheet row of day if the row cache is still fresh.
func (c *Client) cachedRow(day string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !time.Now().Before(c.cacheExpiresAt) {
		return 0, false
	}
	row, ok := c.dayRows[day]
	return row, ok
}

func (c *Client) IsApproved(ctx context.Context, userID string) (bool, error) {
	u, err := c.FindUserByID(ctx, userID)
	if errors.Is(err, core.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Approved, nil
}

func (c *Client) FindUserByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	users, err := c.readProfiles(ctx)
	if err != nil {
		return core.User{}, err
	}
	for _, p := range users {
		if p.user.Email == email {
			return p.user, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (c *Client) FindUserByID(ctx context.Context, id string) (core.User, error) {
	users, err := c.readProfiles(ctx)
	if err != nil {
		return core.User{}, err
	}
	for _, p := range users {
		if p.user.ID == id {
			return p.user, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (c *Client) CreateUser(ctx context.Context, u core.User) error {
	if c.svc == nil {
		return errNotInitialized
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return fmt.Errorf("create user: empty email")
	}
	if _, err := c.FindUserByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("create user: email %s already registered", u.Email)
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	rng := fmt.Sprintf("%s!A:F", c.profilesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{profileRow(u)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append profile: %w", err)
	}
	slog.InfoContext(ctx, "User created", "user_id", u.ID, "approved", u.Approved)
	return nil
}

func (c *Client) SetApproved(ctx context.Context, userID string, approved bool) error {
	if c.svc == nil {
		return errNotInitialized
	}
	users, err := c.readProfiles(ctx)
	if err != nil {
		return err
	}
	for _, p := range users {
		if p.user.ID != userID {
			continue
		}
		rng := fmt.Sprintf("%s!E%d", c.profilesSheet, p.row)
		vr := &gsheet.ValueRange{Values: [][]any{{strconv.FormatBool(approved)}}}
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}
	return core.ErrUserNotFound
}

func (c *Client) readProfiles(ctx context.Context) ([]profile, error) {
	values, err := c.readRange(ctx, c.profilesSheet, "A:F")
	if err != nil {
		return nil, err
	}
	return parseProfileRows(values), nil
}

func (c *Client) readRange(ctx context.Context, sheet, cols string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errNotInitialized
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
