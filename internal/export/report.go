// Package export renders the daily counters of a window as a PDF report.
package export

import (
	"errors"
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/microcosm-cc/bluemonday"

	"svinn/internal/core"
)

// Page geometry in millimetres (A4 portrait).
const (
	pageHeight  = 297.0
	margin      = 15.0
	blockHeight = 62.0
	pieRadius   = 20.0
	arcStepDeg  = 3.0
)

const (
	MsgNoChart  = "Ingen data att visa i grafen för denna dag."
	reportTitle = "Svinnrapport"
)

var ErrNoRecords = errors.New("no records to export")

var strict = bluemonday.StrictPolicy()

// Options tweaks a report.
type Options struct {
	Scheme      core.Scheme
	GeneratedAt time.Time
}

// Render writes the report for rs to w: a summary of the period followed by
// one block per day, newest first. Days without counts get a placeholder
// line instead of a chart.
func Render(w io.Writer, rs core.RecordSet, displayName string, scheme core.Scheme) error {
	pdf, err := Build(rs, displayName, Options{Scheme: scheme, GeneratedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Build lays out the report without writing it.
func Build(rs core.RecordSet, displayName string, opts Options) (*fpdf.Fpdf, error) {
	if rs.Empty() {
		return nil, ErrNoRecords
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	name := cleanName(displayName)

	pdf.SetTitle(reportTitle, true)
	pdf.SetAuthor(name, true)
	pdf.SetCreator("svinn", false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Sida %d av {nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	days := rs.NewestFirst()
	pdf.AddPage()
	writeHeader(pdf, tr, name, days, opts.GeneratedAt)
	writePeriodSummary(pdf, tr, core.Totals(days), len(days))

	for _, rec := range days {
		if pdf.GetY()+blockHeight > pageHeight-margin {
			pdf.AddPage()
		}
		writeDay(pdf, tr, rec, opts.Scheme)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("layout pdf: %w", pdf.Error())
	}
	return pdf, nil
}

func writeHeader(pdf *fpdf.Fpdf, tr func(string) string, name string, days []core.DailyRecord, at time.Time) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(reportTitle), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	newest, oldest := days[0].Day, days[len(days)-1].Day
	pdf.CellFormat(0, 6, tr("Period: "+oldest+" till "+newest), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Skapad av: "+name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Skapad: "+at.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func writePeriodSummary(pdf *fpdf.Fpdf, tr func(string) string, totals core.CategoryTotals, n int) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("Totalt i perioden (%d dagar): %d", n, totals.Total())), "", 1, "L", false, 0, "")
	countsTable(pdf, tr, totals)
	pdf.Ln(6)
}

func countsTable(pdf *fpdf.Fpdf, tr func(string) string, counts core.CategoryTotals) {
	const colW = 45.0
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(240, 240, 240)
	for _, c := range core.Categories {
		pdf.CellFormat(colW, 7, tr(c.Label()), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, c := range core.Categories {
		pdf.CellFormat(colW, 7, strconv.Itoa(counts.Get(c)), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
}

func writeDay(pdf *fpdf.Fpdf, tr func(string) string, rec core.DailyRecord, scheme core.Scheme) {
	top := pdf.GetY()
	counts := rec.Counts()

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(margin, top, 210-margin, top)
	pdf.SetY(top + 2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s  (totalt %d)", rec.Day, counts.Total())), "", 1, "L", false, 0, "")

	slices := core.PieSlices(counts, scheme)
	if len(slices) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 7, tr(MsgNoChart), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(4)
		return
	}

	cx, cy := margin+pieRadius+5, pdf.GetY()+pieRadius+2
	drawPie(pdf, cx, cy, slices)
	drawLegend(pdf, tr, cx+pieRadius+15, cy-pieRadius+4, slices)
	pdf.SetY(top + blockHeight)
}

func drawPie(pdf *fpdf.Fpdf, cx, cy float64, slices []core.Slice) {
	total := 0
	for _, s := range slices {
		total += s.Value
	}
	if len(slices) == 1 {
		setFill(pdf, slices[0].Color)
		pdf.Circle(cx, cy, pieRadius, "F")
		return
	}

	// Angles run clockwise from twelve o'clock.
	start := -90.0
	for _, s := range slices {
		sweep := 360 * float64(s.Value) / float64(total)
		points := []fpdf.PointType{{X: cx, Y: cy}}
		for a := start; a < start+sweep; a += arcStepDeg {
			points = append(points, arcPoint(cx, cy, a))
		}
		points = append(points, arcPoint(cx, cy, start+sweep))
		setFill(pdf, s.Color)
		pdf.Polygon(points, "F")
		start += sweep
	}
}

func arcPoint(cx, cy, deg float64) fpdf.PointType {
	rad := deg * math.Pi / 180
	return fpdf.PointType{X: cx + pieRadius*math.Cos(rad), Y: cy + pieRadius*math.Sin(rad)}
}

func drawLegend(pdf *fpdf.Fpdf, tr func(string) string, x, y float64, slices []core.Slice) {
	pdf.SetFont("Helvetica", "", 10)
	for i, s := range slices {
		rowY := y + float64(i)*8
		setFill(pdf, s.Color)
		pdf.Rect(x, rowY+1, 4, 4, "F")
		pdf.SetXY(x+6, rowY)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s: %d (%d%%)", s.Label, s.Value, s.Percent)), "", 0, "L", false, 0, "")
	}
}

func setFill(pdf *fpdf.Fpdf, hex string) {
	r, g, b := hexRGB(hex)
	pdf.SetFillColor(r, g, b)
}

// hexRGB parses "#rrggbb"; anything else is grey.
func hexRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 128, 128, 128
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 128, 128, 128
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func cleanName(name string) string {
	name = strings.TrimSpace(html.UnescapeString(strict.Sanitize(name)))
	if name == "" {
		return "okänd"
	}
	return name
}
