package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"svinn/internal/core"
	"svinn/internal/dashboard"
	"svinn/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return log.FromContext(r.Context()).Logger
}

// Pie chart geometry for the inline SVG. The chart is drawn in a 200x200
// viewBox centred on (100,100).
const (
	pieCenter      = 100.0
	pieRadius      = 90.0
	pieLabelRadius = 60.0
)

type pieSegment struct {
	core.Slice
	Path   string
	Full   bool
	LabelX float64
	LabelY float64
}

// pieSegments lays out slices clockwise from twelve o'clock. A lone slice
// is drawn as a full circle since an arc cannot span 360 degrees.
func pieSegments(slices []core.Slice) []pieSegment {
	total := 0
	for _, sl := range slices {
		total += sl.Value
	}
	if total == 0 {
		return nil
	}

	out := make([]pieSegment, 0, len(slices))
	start := 0.0
	for _, sl := range slices {
		sweep := float64(sl.Value) / float64(total) * 360
		seg := pieSegment{Slice: sl}
		mid := start + sweep/2
		if len(slices) == 1 {
			seg.Full = true
			seg.LabelX, seg.LabelY = pieCenter, pieCenter
		} else {
			x1, y1 := polar(pieRadius, start)
			x2, y2 := polar(pieRadius, start+sweep)
			large := 0
			if sweep > 180 {
				large = 1
			}
			seg.Path = fmt.Sprintf("M %.2f %.2f L %.2f %.2f A %.0f %.0f 0 %d 1 %.2f %.2f Z",
				pieCenter, pieCenter, x1, y1, pieRadius, pieRadius, large, x2, y2)
			seg.LabelX, seg.LabelY = polar(pieLabelRadius, mid)
		}
		out = append(out, seg)
		start += sweep
	}
	return out
}

// polar converts an angle in degrees, measured clockwise from twelve
// o'clock, to SVG coordinates.
func polar(r, deg float64) (float64, float64) {
	rad := (deg - 90) * math.Pi / 180
	return round2(pieCenter + r*math.Cos(rad)), round2(pieCenter + r*math.Sin(rad))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// totalsTable is one per-category summary table.
type totalsTable struct {
	Categories []core.Category
	Counts     core.CategoryTotals
	Total      int
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"pie": pieSegments,
		"count": func(t core.CategoryTotals, c core.Category) int {
			return t.Get(c)
		},
		"totals": func(cats []core.Category, counts core.CategoryTotals, total int) totalsTable {
			return totalsTable{Categories: cats, Counts: counts, Total: total}
		},
		"isReady":    func(v dashboard.View) bool { return v.Phase == dashboard.PhaseReady },
		"isEmpty":    func(v dashboard.View) bool { return v.Phase == dashboard.PhaseEmpty },
		"isError":    func(v dashboard.View) bool { return v.Phase == dashboard.PhaseError },
		"isLoading":  func(v dashboard.View) bool { return v.Phase == dashboard.PhaseLoading || v.Phase == dashboard.PhaseCheckingApproval },
		"msgNoSlice": func() string { return dashboard.MsgNoSlices },
		"msgNoData":  func() string { return dashboard.MsgNoHistory },
	}
}
