package core

import "math"

// Slice is one non-zero segment of the pie chart.
type Slice struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Value    int      `json:"value"`
	Color    string   `json:"color"`
	// Percent is the share of the slice rounded to a whole percent.
	Percent int `json:"percent"`
}

// SelectWindow turns gateway rows into a RecordSet bounded by window. The
// gateway already applies the limit; extra rows are trimmed from the old end.
func SelectWindow(rows []DailyRecord, window Window) (RecordSet, error) {
	rs, err := NewRecordSet(rows)
	if err != nil {
		return RecordSet{}, err
	}
	if n := window.Days(); n > 0 && rs.Len() > n {
		rs.records = rs.records[rs.Len()-n:]
	}
	return rs, nil
}

// TodayCounters returns the counts of the record whose day equals todayKey,
// or all zero. The first match wins.
func TodayCounters(records []DailyRecord, todayKey string) CategoryTotals {
	for _, r := range records {
		if r.Day == todayKey {
			return r.Counts()
		}
	}
	return CategoryTotals{}
}

// ResolveSelection picks the highlighted day after a fetch.
//
// Without a previous selection it prefers today, then the most recent day.
// A previous selection that is still present is kept; one that vanished falls
// back to the most recent day. An empty set yields "".
func ResolveSelection(rs RecordSet, previous, todayKey string) string {
	latest, ok := rs.Latest()
	if !ok {
		return ""
	}
	if previous == "" {
		if _, found := rs.Find(todayKey); found {
			return todayKey
		}
		return latest.Day
	}
	if _, found := rs.Find(previous); found {
		return previous
	}
	return latest.Day
}

// Totals sums each category across records.
func Totals(records []DailyRecord) CategoryTotals {
	var t CategoryTotals
	for _, r := range records {
		t = t.Add(r.Counts())
	}
	return t
}

// PieSlices maps counts to chart slices in scheme order, dropping categories
// whose count is zero.
func PieSlices(counts CategoryTotals, scheme Scheme) []Slice {
	total := counts.Total()
	slices := make([]Slice, 0, len(Categories))
	for _, c := range scheme.Order() {
		v := counts.Get(c)
		if v <= 0 {
			continue
		}
		slices = append(slices, Slice{
			Category: c,
			Label:    c.Label(),
			Value:    v,
			Color:    c.Color(),
			Percent:  percent(v, total),
		})
	}
	return slices
}

// PeriodDiffersFromSelection reports whether the period summary block adds
// information beyond the selected-day block.
func PeriodDiffersFromSelection(periodTotal, selectedTotal int) bool {
	return periodTotal != selectedTotal
}

func percent(v, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(v) * 100 / float64(total)))
}
