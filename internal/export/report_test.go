package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"

	"svinn/internal/core"
)

func recordSet(t *testing.T, rows ...core.DailyRecord) core.RecordSet {
	t.Helper()
	rs, err := core.NewRecordSet(rows)
	if err != nil {
		t.Fatalf("NewRecordSet: %v", err)
	}
	return rs
}

func TestRender_WritesPDF(t *testing.T) {
	rs := recordSet(t,
		core.DailyRecord{Day: "2024-01-01", One: 2, Three: 1},
		core.DailyRecord{Day: "2024-01-02", Two: 3, Four: 1},
	)
	var buf bytes.Buffer
	if err := Render(&buf, rs, "Kökschef Åsa", core.DefaultScheme()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestBuild_Pagination(t *testing.T) {
	var rows []core.DailyRecord
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		rows = append(rows, core.DailyRecord{Day: start.AddDate(0, 0, i).Format(core.DayLayout), One: i % 3, Two: 1})
	}
	pdf, err := Build(recordSet(t, rows...), "Admin", Options{Scheme: core.DefaultScheme()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if pdf.PageCount() < 2 {
		t.Fatalf("30 day blocks fit on %d page(s)", pdf.PageCount())
	}

	single, err := Build(recordSet(t, rows[0]), "Admin", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if single.PageCount() != 1 {
		t.Fatalf("single day report has %d pages", single.PageCount())
	}
}

func TestBuild_ZeroDayUsesPlaceholder(t *testing.T) {
	// The placeholder is written in the core font's single-byte encoding.
	placeholder := []byte(fpdf.New("P", "mm", "A4", "").UnicodeTranslatorFromDescriptor("")(MsgNoChart))

	tests := []struct {
		name string
		rows []core.DailyRecord
		want int
	}{
		{"one empty day", []core.DailyRecord{{Day: "2024-01-01"}, {Day: "2024-01-02", Four: 5}}, 1},
		{"every day counted", []core.DailyRecord{{Day: "2024-01-01", One: 1}, {Day: "2024-01-02", Four: 5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf, err := Build(recordSet(t, tt.rows...), "Admin", Options{})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			pdf.SetCompression(false)
			var buf bytes.Buffer
			if err := pdf.Output(&buf); err != nil {
				t.Fatalf("Output: %v", err)
			}
			if got := bytes.Count(buf.Bytes(), placeholder); got != tt.want {
				t.Fatalf("placeholder lines = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	empty, _ := core.NewRecordSet(nil)
	if _, err := Build(empty, "Admin", Options{}); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("Build(empty) error = %v, want ErrNoRecords", err)
	}
}

func TestHexRGB(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
	}{
		{"#8884d8", 0x88, 0x84, 0xd8},
		{"ff7f7f", 0xff, 0x7f, 0x7f},
		{"#zzz", 128, 128, 128},
	}
	for _, tt := range tests {
		r, g, b := hexRGB(tt.in)
		if r != tt.r || g != tt.g || b != tt.b {
			t.Errorf("hexRGB(%q) = %d,%d,%d", tt.in, r, g, b)
		}
	}
}

func TestCleanName(t *testing.T) {
	if got := cleanName("<i>Åsa & Bo</i>"); got != "Åsa & Bo" {
		t.Fatalf("cleanName = %q", got)
	}
	if got := cleanName("  "); got != "okänd" {
		t.Fatalf("cleanName(blank) = %q", got)
	}
}
