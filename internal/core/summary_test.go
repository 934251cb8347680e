package core

import (
	"errors"
	"reflect"
	"testing"
)

func twoDayRows() []DailyRecord {
	return []DailyRecord{
		{Day: "2024-01-01", One: 2, Two: 0, Three: 1, Four: 0},
		{Day: "2024-01-02", One: 0, Two: 3, Three: 0, Four: 1},
	}
}

func TestTwoDayWindow_TodayTotalsAndSlices(t *testing.T) {
	rs, err := SelectWindow(twoDayRows(), Window7)
	if err != nil {
		t.Fatalf("SelectWindow: %v", err)
	}

	today := TodayCounters(rs.OldestFirst(), "2024-01-02")
	if want := (CategoryTotals{One: 0, Two: 3, Three: 0, Four: 1}); today != want {
		t.Fatalf("TodayCounters = %+v, want %+v", today, want)
	}

	totals := Totals(rs.OldestFirst())
	if want := (CategoryTotals{One: 2, Two: 3, Three: 1, Four: 1}); totals != want {
		t.Fatalf("Totals = %+v, want %+v", totals, want)
	}

	slices := PieSlices(totals, DefaultScheme())
	if len(slices) != 4 {
		t.Fatalf("expected 4 slices, got %d", len(slices))
	}
	sum := 0
	for _, s := range slices {
		sum += s.Value
	}
	if sum != 7 {
		t.Fatalf("slice sum = %d, want 7", sum)
	}
}

func TestSingleDay_HidesPeriodBlock(t *testing.T) {
	rows := []DailyRecord{{Day: "2024-03-10", One: 1, Two: 2, Three: 3, Four: 4}}
	rs, err := SelectWindow(rows, Window7)
	if err != nil {
		t.Fatalf("SelectWindow: %v", err)
	}
	day := ResolveSelection(rs, "", "2024-03-10")
	sel, _ := rs.Find(day)
	period := Totals(rs.OldestFirst())
	if PeriodDiffersFromSelection(period.Total(), sel.Counts().Total()) {
		t.Fatalf("period block should be suppressed for a single-record set")
	}
}

func TestEmptySet_NoSelectionOrSlices(t *testing.T) {
	rs, err := SelectWindow(nil, Window7)
	if err != nil {
		t.Fatalf("SelectWindow: %v", err)
	}
	if got := ResolveSelection(rs, "", "2024-01-01"); got != "" {
		t.Fatalf("ResolveSelection on empty set = %q, want empty", got)
	}
	if got := TodayCounters(rs.OldestFirst(), "2024-01-01"); !got.IsZero() {
		t.Fatalf("TodayCounters on empty set = %+v", got)
	}
	if got := PieSlices(Totals(rs.OldestFirst()), DefaultScheme()); len(got) != 0 {
		t.Fatalf("PieSlices on empty set = %v", got)
	}
}

func TestTotals_ElementWiseSum(t *testing.T) {
	rows := []DailyRecord{
		{Day: "2024-02-01", One: 5, Four: 2},
		{Day: "2024-02-02", Two: 7},
		{Day: "2024-02-03", Three: 1, Four: 1},
		{Day: "2024-02-04"},
	}
	var want CategoryTotals
	for _, r := range rows {
		want.One += r.One
		want.Two += r.Two
		want.Three += r.Three
		want.Four += r.Four
	}
	got := Totals(rows)
	if got != want {
		t.Fatalf("Totals = %+v, want %+v", got, want)
	}
	for _, c := range Categories {
		if got.Get(c) < 0 {
			t.Fatalf("category %s negative", c)
		}
	}
	if got.Total() != 5+2+7+1+1 {
		t.Fatalf("Total = %d", got.Total())
	}
}

func TestTodayCounters_FirstMatchWins(t *testing.T) {
	rows := []DailyRecord{
		{Day: "2024-01-05", One: 1},
		{Day: "2024-01-05", One: 9},
	}
	if got := TodayCounters(rows, "2024-01-05"); got.One != 1 {
		t.Fatalf("expected first match, got %+v", got)
	}
	if got := TodayCounters(rows, "2024-01-06"); !got.IsZero() {
		t.Fatalf("expected zero for missing day, got %+v", got)
	}
}

func TestResolveSelection(t *testing.T) {
	rs, err := NewRecordSet([]DailyRecord{
		{Day: "2024-01-03"},
		{Day: "2024-01-01"},
		{Day: "2024-01-02"},
	})
	if err != nil {
		t.Fatalf("NewRecordSet: %v", err)
	}

	tests := []struct {
		name     string
		previous string
		today    string
		want     string
	}{
		{"no selection prefers today", "", "2024-01-02", "2024-01-02"},
		{"no selection without today picks latest", "", "2024-02-01", "2024-01-03"},
		{"previous kept when present", "2024-01-01", "2024-01-02", "2024-01-01"},
		{"previous missing falls back to latest", "2023-12-31", "2024-01-02", "2024-01-03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSelection(rs, tt.previous, tt.today)
			if got != tt.want {
				t.Fatalf("ResolveSelection(%q, %q) = %q, want %q", tt.previous, tt.today, got, tt.want)
			}
			// idempotent
			if again := ResolveSelection(rs, tt.previous, tt.today); again != got {
				t.Fatalf("second call = %q, first = %q", again, got)
			}
		})
	}

	empty, _ := NewRecordSet(nil)
	if got := ResolveSelection(empty, "2024-01-01", "2024-01-01"); got != "" {
		t.Fatalf("vanished selection on empty set = %q, want empty", got)
	}
}

func TestPieSlices_FiltersZeroAndKeepsColors(t *testing.T) {
	counts := CategoryTotals{One: 0, Two: 4, Three: 0, Four: 1}
	got := PieSlices(counts, DefaultScheme())
	if len(got) != 2 {
		t.Fatalf("expected 2 slices, got %d: %+v", len(got), got)
	}
	for _, s := range got {
		if s.Value == 0 {
			t.Fatalf("zero slice present: %+v", s)
		}
	}
	if got[0].Category != CategoryTwo || got[0].Color != "#82ca9d" {
		t.Fatalf("first slice = %+v", got[0])
	}
	if got[1].Category != CategoryFour || got[1].Color != "#ff7f7f" {
		t.Fatalf("second slice = %+v", got[1])
	}
	if got[0].Percent != 80 || got[1].Percent != 20 {
		t.Fatalf("percents = %d/%d, want 80/20", got[0].Percent, got[1].Percent)
	}
}

func TestPieSlices_AlternateOrder(t *testing.T) {
	scheme, err := ParseScheme("1,3,4,2")
	if err != nil {
		t.Fatalf("ParseScheme: %v", err)
	}
	got := PieSlices(CategoryTotals{One: 1, Two: 1, Three: 1, Four: 1}, scheme)
	var order []Category
	for _, s := range got {
		order = append(order, s.Category)
	}
	want := []Category{CategoryOne, CategoryThree, CategoryFour, CategoryTwo}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if got[3].Color != CategoryTwo.Color() {
		t.Fatalf("color moved with position: %+v", got[3])
	}
}

func TestPeriodDiffersFromSelection(t *testing.T) {
	for _, v := range []int{0, 1, 17, 365} {
		if PeriodDiffersFromSelection(v, v) {
			t.Fatalf("equal totals %d reported as different", v)
		}
	}
	if !PeriodDiffersFromSelection(10, 3) || !PeriodDiffersFromSelection(0, 1) {
		t.Fatalf("unequal totals reported as equal")
	}
}

func TestSelectWindow_OrderingAndTrim(t *testing.T) {
	newestFirst := []DailyRecord{
		{Day: "2024-01-09"},
		{Day: "2024-01-08"},
		{Day: "2024-01-07"},
		{Day: "2024-01-06"},
		{Day: "2024-01-05"},
		{Day: "2024-01-04"},
		{Day: "2024-01-03"},
		{Day: "2024-01-02"},
	}
	rs, err := SelectWindow(newestFirst, Window7)
	if err != nil {
		t.Fatalf("SelectWindow: %v", err)
	}
	if rs.Len() != 7 {
		t.Fatalf("Len = %d, want 7", rs.Len())
	}
	old := rs.OldestFirst()
	if old[0].Day != "2024-01-03" || old[6].Day != "2024-01-09" {
		t.Fatalf("OldestFirst = %v", old)
	}
	nf := rs.NewestFirst()
	if nf[0].Day != "2024-01-09" || nf[6].Day != "2024-01-03" {
		t.Fatalf("NewestFirst = %v", nf)
	}
}

func TestSelectWindow_DataQualityErrors(t *testing.T) {
	_, err := SelectWindow([]DailyRecord{{Day: "2024-01-01"}, {Day: "2024-01-01"}}, Window7)
	if !errors.Is(err, ErrDuplicateDay) {
		t.Fatalf("expected ErrDuplicateDay, got %v", err)
	}
	var de *DataError
	if !errors.As(err, &de) || de.Day != "2024-01-01" {
		t.Fatalf("expected DataError for 2024-01-01, got %v", err)
	}

	_, err = SelectWindow([]DailyRecord{{Day: "2024-01-01", Three: -1}}, Window7)
	if !errors.Is(err, ErrNegativeCount) {
		t.Fatalf("expected ErrNegativeCount, got %v", err)
	}

	_, err = SelectWindow([]DailyRecord{{Day: "01/01/2024"}}, Window7)
	if !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
}
