package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// DayLayout is the ISO calendar-date layout used as the unique key of a record.
const DayLayout = "2006-01-02"

type (
	// DailyRecord holds the counts of the four feedback categories for one day.
	DailyRecord struct {
		Day   string `json:"day"`
		One   int    `json:"one"`
		Two   int    `json:"two"`
		Three int    `json:"three"`
		Four  int    `json:"four"`
	}

	// CategoryTotals is either a single record's counts or a sum across records.
	CategoryTotals struct {
		One   int `json:"one"`
		Two   int `json:"two"`
		Three int `json:"three"`
		Four  int `json:"four"`
	}

	// Window is the number of most recent days requested from the gateway.
	Window int
)

// Supported windows, as offered by the dashboard selector.
const (
	Window7   Window = 7
	Window14  Window = 14
	Window30  Window = 30
	Window90  Window = 90
	Window180 Window = 180
	Window365 Window = 365

	DefaultWindow = Window7
)

// Windows lists the supported window sizes in ascending order.
var Windows = []Window{Window7, Window14, Window30, Window90, Window180, Window365}

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidWindow = errors.New("invalid window")
	ErrDuplicateDay  = errors.New("duplicate day")
	ErrNegativeCount = errors.New("negative count")
	ErrUserNotFound  = errors.New("user not found")
)

// DataError reports a data-quality problem in a fetched row set.
type DataError struct {
	Day string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data quality: %v (day=%s)", e.Err, e.Day)
}

func (e *DataError) Unwrap() error { return e.Err }

// Counts returns the record's values as CategoryTotals.
func (r DailyRecord) Counts() CategoryTotals {
	return CategoryTotals{One: r.One, Two: r.Two, Three: r.Three, Four: r.Four}
}

// Validate checks the day key and that no count is negative.
func (r DailyRecord) Validate() error {
	if _, err := ParseDay(r.Day); err != nil {
		return err
	}
	for _, c := range Categories {
		if r.Counts().Get(c) < 0 {
			return &DataError{Day: r.Day, Err: fmt.Errorf("%w in %s", ErrNegativeCount, c)}
		}
	}
	return nil
}

// Get returns the count of one category.
func (t CategoryTotals) Get(c Category) int {
	switch c {
	case CategoryOne:
		return t.One
	case CategoryTwo:
		return t.Two
	case CategoryThree:
		return t.Three
	case CategoryFour:
		return t.Four
	}
	return 0
}

// Add returns the element-wise sum of t and o.
func (t CategoryTotals) Add(o CategoryTotals) CategoryTotals {
	return CategoryTotals{
		One:   t.One + o.One,
		Two:   t.Two + o.Two,
		Three: t.Three + o.Three,
		Four:  t.Four + o.Four,
	}
}

// Total is one+two+three+four.
func (t CategoryTotals) Total() int {
	return t.One + t.Two + t.Three + t.Four
}

// IsZero reports whether every category is zero.
func (t CategoryTotals) IsZero() bool {
	return t == CategoryTotals{}
}

// ParseDay parses a YYYY-MM-DD key.
func ParseDay(s string) (time.Time, error) {
	d, err := time.Parse(DayLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDay, s, err)
	}
	return d, nil
}

// DayKey formats t in loc as a YYYY-MM-DD key.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DayLayout)
}

// ParseWindow parses a window size; the empty string yields DefaultWindow.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return DefaultWindow, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: must be a number", ErrInvalidWindow, s)
	}
	w := Window(n)
	if !w.Valid() {
		return 0, fmt.Errorf("%w %d: must be one of %v", ErrInvalidWindow, n, Windows)
	}
	return w, nil
}

// Valid reports whether w is one of the supported sizes.
func (w Window) Valid() bool {
	for _, v := range Windows {
		if v == w {
			return true
		}
	}
	return false
}

// Days returns the window size as an int.
func (w Window) Days() int { return int(w) }

// Label returns the selector label ("7 dagar", ..., "1 år").
func (w Window) Label() string {
	if w == Window365 {
		return "1 år"
	}
	return strconv.Itoa(int(w)) + " dagar"
}

// RecordSet is a validated set of daily records, unique by day and ordered
// oldest to newest. Both orderings are views over the same rows.
type RecordSet struct {
	records []DailyRecord
}

// NewRecordSet validates rows (in any order) and orders them oldest to newest.
// Duplicate days and negative counts are reported as *DataError.
func NewRecordSet(rows []DailyRecord) (RecordSet, error) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]DailyRecord, 0, len(rows))
	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return RecordSet{}, err
		}
		if _, dup := seen[r.Day]; dup {
			return RecordSet{}, &DataError{Day: r.Day, Err: ErrDuplicateDay}
		}
		seen[r.Day] = struct{}{}
		out = append(out, r)
	}
	// ISO keys sort chronologically as strings.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return RecordSet{records: out}, nil
}

// Len returns the number of records.
func (rs RecordSet) Len() int { return len(rs.records) }

// Empty reports whether the set has no records.
func (rs RecordSet) Empty() bool { return len(rs.records) == 0 }

// OldestFirst returns the records oldest to newest (display order).
func (rs RecordSet) OldestFirst() []DailyRecord {
	return append([]DailyRecord(nil), rs.records...)
}

// NewestFirst returns the records newest to oldest (export order).
func (rs RecordSet) NewestFirst() []DailyRecord {
	out := make([]DailyRecord, len(rs.records))
	for i, r := range rs.records {
		out[len(rs.records)-1-i] = r
	}
	return out
}

// Find returns the record for day.
func (rs RecordSet) Find(day string) (DailyRecord, bool) {
	for _, r := range rs.records {
		if r.Day == day {
			return r, true
		}
	}
	return DailyRecord{}, false
}

// Latest returns the most recent record.
func (rs RecordSet) Latest() (DailyRecord, bool) {
	if len(rs.records) == 0 {
		return DailyRecord{}, false
	}
	return rs.records[len(rs.records)-1], true
}

// User is an account that may sign in to the dashboard.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Approved     bool
	CreatedAt    time.Time
}
