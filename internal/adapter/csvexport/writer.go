// Package csvexport writes the joined analysis table to a CSV file.
package csvexport

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
)

// header is the fixed column order of the exported table. ProcessedAt is
// deliberately not exported: two runs over the same inputs must produce
// byte-identical files.
var header = []string{
	"location",
	"timestamp_utc",
	"count",
	"adjusted_count",
	"log_count",
	"day_of_week",
	"weekend",
	"was_zero_adjusted",
	"anomaly",
	"temperature_c",
	"precipitation_mm",
	"weather_matched",
}

// Writer implements pipeline.TableSink by writing the full table to a
// single CSV file. Each run replaces the file atomically via a temp file
// and rename, so readers never observe a partial table.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a CSV sink that writes to path, creating parent
// directories as needed.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

func (w *Writer) WriteTable(ctx context.Context, records []domain.JoinedRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeTable(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("replace %s: %w", w.path, err)
	}

	w.logger.Info("joined table exported", "path", w.path, "rows", len(records))
	return nil
}

func writeTable(f *os.File, records []domain.JoinedRecord) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(formatRow(rec)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func formatRow(rec domain.JoinedRecord) []string {
	return []string{
		rec.Location,
		rec.ObservedAt.UTC().Format(time.RFC3339),
		strconv.Itoa(rec.Count),
		strconv.Itoa(rec.AdjustedCount),
		formatFloat(rec.LogCount),
		strconv.Itoa(rec.DayOfWeek),
		strconv.FormatBool(rec.Weekend),
		strconv.FormatBool(rec.WasZeroAdjusted),
		string(rec.Anomaly),
		formatOptional(rec.TemperatureC),
		formatOptional(rec.PrecipitationMM),
		strconv.FormatBool(rec.WeatherMatched),
	}
}

// formatOptional renders a missing measurement as an empty cell rather
// than a sentinel number.
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
