package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"svinn/internal/core"
)

type profile struct {
	user core.User
	row  int
}

// parseCounterRows converts the counters tab (day, one..four) into records.
// A header row and blank rows are skipped; empty cells count as zero.
func parseCounterRows(values [][]interface{}) ([]core.DailyRecord, error) {
	out := make([]core.DailyRecord, 0, len(values))
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 || cols[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "day") {
			continue
		}
		rec, err := parseCounterRow(cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseCounterRow(cols []string) (core.DailyRecord, error) {
	rec := core.DailyRecord{Day: safeGet(cols, 0)}
	if _, err := core.ParseDay(rec.Day); err != nil {
		return core.DailyRecord{}, err
	}
	dst := []*int{&rec.One, &rec.Two, &rec.Three, &rec.Four}
	for i, p := range dst {
		v := safeGet(cols, i+1)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.DailyRecord{}, fmt.Errorf("%s %q: %w", core.Categories[i], v, err)
		}
		*p = n
	}
	return rec, nil
}

// parseProfileRows reads id, email, password_hash, display_name, approved,
// created_at. Rows without id or email are ignored.
func parseProfileRows(values [][]interface{}) []profile {
	var out []profile
	for i, row := range values {
		cols := toStrings(row)
		id, email := safeGet(cols, 0), strings.ToLower(safeGet(cols, 1))
		if id == "" || email == "" || (i == 0 && strings.EqualFold(id, "id")) {
			continue
		}
		approved, _ := strconv.ParseBool(safeGet(cols, 4))
		created, _ := time.Parse(time.RFC3339, safeGet(cols, 5))
		out = append(out, profile{
			row: i + 1,
			user: core.User{
				ID:           id,
				Email:        email,
				PasswordHash: safeGet(cols, 2),
				DisplayName:  safeGet(cols, 3),
				Approved:     approved,
				CreatedAt:    created,
			},
		})
	}
	return out
}

func profileRow(u core.User) []any {
	return []any{u.ID, u.Email, u.PasswordHash, u.DisplayName, strconv.FormatBool(u.Approved), u.CreatedAt.Format(time.RFC3339)}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
