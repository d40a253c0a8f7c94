// Command validate performs integrity checks over an exported joined table.
// It re-derives every per-row invariant from the raw columns: zero
// adjustment, the log transform, calendar features, anomaly labels, and
// weather field consistency.
//
// Usage:
//
//	go run ./cmd/validate -joined-csv data/joined_ride_weather.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

var expectedHeader = []string{
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

// row is one parsed line of the joined table.
type row struct {
	line            int
	location        string
	timestamp       time.Time
	count           int
	adjustedCount   int
	logCount        float64
	dayOfWeek       int
	weekend         bool
	wasZeroAdjusted bool
	anomaly         string
	temperature     string
	precipitation   string
	weatherMatched  bool
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	joinedCSV := flag.String("joined-csv", "", "path to the exported joined table")
	threshold := flag.Int("extreme-threshold", 500, "extreme value threshold the table was built with")
	flag.Parse()

	if *joinedCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*joinedCSV, *threshold); code != 0 {
		os.Exit(code)
	}
}

func run(path string, threshold int) int {
	fmt.Println("=== Joined Table Integrity Validation ===")
	fmt.Println()

	rows, headerPhase, err := loadTable(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load joined table: %v\n", err)
		return 1
	}

	phases := []*phase{
		headerPhase,
		validateCountAdjustment(rows),
		validateLogTransform(rows),
		validateCalendar(rows),
		validateAnomalies(rows, threshold),
		validateWeatherFields(rows),
		validateOrdering(rows),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			allPassed = false
		}
		fmt.Printf("[%s] %s\n", status, p.name)
		for _, e := range p.errors {
			fmt.Printf("       %s\n", e)
		}
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("validation FAILED")
		return 1
	}
	fmt.Printf("validation passed: %d rows\n", len(rows))
	return 0
}

func loadTable(path string) ([]row, *phase, error) {
	p := &phase{name: "schema"}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}

	header := records[0]
	if len(header) != len(expectedHeader) {
		p.errorf("header has %d columns, want %d", len(header), len(expectedHeader))
		return nil, p, nil
	}
	for i, col := range expectedHeader {
		if header[i] != col {
			p.errorf("column %d is %q, want %q", i, header[i], col)
		}
	}
	if !p.passed() {
		return nil, p, nil
	}

	rows := make([]row, 0, len(records)-1)
	for i, rec := range records[1:] {
		r, err := parseRow(rec)
		if err != nil {
			p.errorf("line %d: %v", i+2, err)
			continue
		}
		r.line = i + 2
		rows = append(rows, r)
	}
	return rows, p, nil
}

func parseRow(rec []string) (row, error) {
	ts, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return row{}, fmt.Errorf("bad timestamp %q", rec[1])
	}
	count, err := strconv.Atoi(rec[2])
	if err != nil {
		return row{}, fmt.Errorf("bad count %q", rec[2])
	}
	adjusted, err := strconv.Atoi(rec[3])
	if err != nil {
		return row{}, fmt.Errorf("bad adjusted_count %q", rec[3])
	}
	logCount, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return row{}, fmt.Errorf("bad log_count %q", rec[4])
	}
	dow, err := strconv.Atoi(rec[5])
	if err != nil {
		return row{}, fmt.Errorf("bad day_of_week %q", rec[5])
	}
	weekend, err := strconv.ParseBool(rec[6])
	if err != nil {
		return row{}, fmt.Errorf("bad weekend %q", rec[6])
	}
	zeroAdj, err := strconv.ParseBool(rec[7])
	if err != nil {
		return row{}, fmt.Errorf("bad was_zero_adjusted %q", rec[7])
	}
	matched, err := strconv.ParseBool(rec[11])
	if err != nil {
		return row{}, fmt.Errorf("bad weather_matched %q", rec[11])
	}

	return row{
		location:        rec[0],
		timestamp:       ts,
		count:           count,
		adjustedCount:   adjusted,
		logCount:        logCount,
		dayOfWeek:       dow,
		weekend:         weekend,
		wasZeroAdjusted: zeroAdj,
		anomaly:         rec[8],
		temperature:     rec[9],
		precipitation:   rec[10],
		weatherMatched:  matched,
	}, nil
}

func validateCountAdjustment(rows []row) *phase {
	p := &phase{name: "count adjustment"}
	for _, r := range rows {
		if r.count < 0 {
			p.errorf("line %d: negative count %d", r.line, r.count)
		}
		if r.count == 0 {
			if !r.wasZeroAdjusted || r.adjustedCount != 1 {
				p.errorf("line %d: zero count must become adjusted_count=1 with was_zero_adjusted", r.line)
			}
			continue
		}
		if r.wasZeroAdjusted {
			p.errorf("line %d: non-zero count %d tagged was_zero_adjusted", r.line, r.count)
		}
		if r.adjustedCount != r.count {
			p.errorf("line %d: adjusted_count %d differs from count %d", r.line, r.adjustedCount, r.count)
		}
	}
	return p
}

func validateLogTransform(rows []row) *phase {
	p := &phase{name: "log transform"}
	for _, r := range rows {
		want := math.Log(float64(r.adjustedCount))
		if math.Abs(r.logCount-want) > 1e-9 {
			p.errorf("line %d: log_count %g, want ln(%d)=%g", r.line, r.logCount, r.adjustedCount, want)
		}
	}
	return p
}

func validateCalendar(rows []row) *phase {
	p := &phase{name: "calendar features"}
	for _, r := range rows {
		if r.dayOfWeek < 1 || r.dayOfWeek > 7 {
			p.errorf("line %d: day_of_week %d out of range", r.line, r.dayOfWeek)
			continue
		}
		if wantWeekend := r.dayOfWeek > 5; r.weekend != wantWeekend {
			p.errorf("line %d: weekend=%v inconsistent with day_of_week=%d", r.line, r.weekend, r.dayOfWeek)
		}
	}
	return p
}

func validateAnomalies(rows []row, threshold int) *phase {
	p := &phase{name: "anomaly labels"}
	for _, r := range rows {
		switch r.anomaly {
		case "", "repeated_value_run":
		case "extreme_value":
			if r.count <= threshold {
				p.errorf("line %d: extreme_value with count %d <= threshold %d", r.line, r.count, threshold)
			}
		default:
			p.errorf("line %d: unknown anomaly label %q", r.line, r.anomaly)
		}
	}
	return p
}

func validateWeatherFields(rows []row) *phase {
	p := &phase{name: "weather fields"}
	for _, r := range rows {
		if !r.weatherMatched {
			if r.temperature != "" || r.precipitation != "" {
				p.errorf("line %d: unmatched row carries weather values", r.line)
			}
			continue
		}
		if r.temperature != "" {
			if _, err := strconv.ParseFloat(r.temperature, 64); err != nil {
				p.errorf("line %d: bad temperature_c %q", r.line, r.temperature)
			}
		}
		if r.precipitation != "" {
			v, err := strconv.ParseFloat(r.precipitation, 64)
			if err != nil || v < 0 {
				p.errorf("line %d: bad precipitation_mm %q", r.line, r.precipitation)
			}
		}
	}
	return p
}

// validateOrdering checks that rows are grouped by location with ascending
// timestamps, the order the cleaner guarantees.
func validateOrdering(rows []row) *phase {
	p := &phase{name: "row ordering"}
	seen := map[string]bool{}
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if cur.location != prev.location {
			if seen[cur.location] {
				p.errorf("line %d: location %q appears in multiple blocks", cur.line, cur.location)
			}
			seen[prev.location] = true
			continue
		}
		if cur.timestamp.Before(prev.timestamp) {
			p.errorf("line %d: timestamp regresses within %q", cur.line, cur.location)
		}
	}
	return p
}
