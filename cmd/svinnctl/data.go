package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"svinn/internal/cli"
	"svinn/internal/core"
	"svinn/internal/export"
	"svinn/internal/gateway"
	"svinn/internal/services"
)

var (
	exportDays int
	exportOut  string
	exportName string
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE",
	Short: "Load daily counters from a CSV file",
	Long: `Each row is day,one,two,three,four. Existing days are overwritten.
A header row starting with "day" and lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		n, err := seedRecords(cmd.Context(), e.backend.Backend, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d days\n", n)
		return nil
	},
}

// seedRecords upserts every row of r and returns the number written.
func seedRecords(ctx context.Context, w gateway.CounterWriter, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	n := 0
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "day") {
			continue
		}
		rec, err := parseSeedRow(row)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if err := w.UpsertDailyRecord(ctx, rec); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
}

func parseSeedRow(row []string) (core.DailyRecord, error) {
	if len(row) != 5 {
		return core.DailyRecord{}, fmt.Errorf("want 5 columns, got %d", len(row))
	}
	rec := core.DailyRecord{Day: strings.TrimSpace(row[0])}
	for i, dst := range []*int{&rec.One, &rec.Two, &rec.Three, &rec.Four} {
		v, err := strconv.Atoi(strings.TrimSpace(row[i+1]))
		if err != nil {
			return core.DailyRecord{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		*dst = v
	}
	return rec, rec.Validate()
}

var clickCmd = &cobra.Command{
	Use:   "click CATEGORY",
	Short: "Record one click for today, as a kiosk would",
	Long: `CATEGORY is 1-4 or its key (one, two, three, four). The click goes
through the queue when AMQP_URL is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := core.ParseCategory(args[0])
		if err != nil {
			return err
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		var publisher services.Publisher
		queue, err := cli.OpenQueue(e.cfg)
		if err != nil {
			return err
		}
		if queue != nil {
			publisher = queue
		}
		svc := services.NewClickService(e.backend.Backend, publisher, e.cfg.Location())
		defer svc.Close()

		rc, err := svc.RecordClick(cmd.Context(), cat)
		if err != nil {
			return err
		}
		if rc.Queued {
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for %s (message %s)\n", cat.Label(), rc.Day, rc.MessageID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", cat.Label(), rc.Day)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a PDF report of the most recent days",
	RunE: func(cmd *cobra.Command, args []string) error {
		window := core.Window(exportDays)
		if !window.Valid() {
			return fmt.Errorf("%w: %d days (choose one of %v)", core.ErrInvalidWindow, exportDays, core.Windows)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		rows, err := e.backend.Backend.FetchDailyCounters(cmd.Context(), window.Days())
		if err != nil {
			return fmt.Errorf("fetch counters: %w", err)
		}
		rs, err := core.SelectWindow(rows, window)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		if err := export.Render(out, rs, exportName, e.cfg.Scheme()); err != nil {
			return err
		}
		if exportOut != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d days to %s\n", rs.Len(), exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVarP(&exportDays, "days", "d", int(core.DefaultWindow), "Number of days to include")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "svinn.pdf", `Output file, or "-" for stdout`)
	exportCmd.Flags().StringVar(&exportName, "name", "", "Name printed in the report header")
}
