// Command genmock generates deterministic mock data fixtures: ISD-format
// hourly weather CSVs and counter event JSON documents. The directory layout
// matches the paths the fetch adapters request, so any static file server
// pointed at the output directory can stand in for both upstreams.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data/mock \
//	  -station 716270-99999 \
//	  -year 2015 \
//	  -locations berri1,maisonneuve_2,rachel1
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
)

// fixedSeed keeps every run byte-identical so fixtures can be committed and
// test assertions stay stable.
const fixedSeed = 20150401

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "output directory for mock fixtures")
	station := flag.String("station", "716270-99999", "station identifier used in weather file paths")
	year := flag.Int("year", 2015, "year to generate weather and counter data for")
	locations := flag.String("locations", "berri1,maisonneuve_2,rachel1", "comma-separated counter locations")
	days := flag.Int("days", 14, "number of days of data starting April 1")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}

	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(fixedSeed))
	start := time.Date(*year, time.April, 1, 0, 0, 0, 0, time.UTC)
	hours := *days * 24

	weatherPath := filepath.Join(*outDir, strconv.Itoa(*year), *station+".csv")
	if err := writeWeatherCSV(weatherPath, *station, start, hours, rng); err != nil {
		return fmt.Errorf("writing weather fixture: %w", err)
	}
	log.Printf("wrote weather fixture: %s", weatherPath)

	var allEvents []domain.RawCounterEvent
	for _, location := range strings.Split(*locations, ",") {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		events := generateCounterEvents(location, start, hours, rng)
		allEvents = append(allEvents, events...)

		counterPath := filepath.Join(*outDir, "counters", location+".json")
		if err := writeCounterJSON(counterPath, events); err != nil {
			return fmt.Errorf("writing counter fixture for %s: %w", location, err)
		}
		log.Printf("wrote counter fixture: %s (%d events)", counterPath, len(events))
	}

	printStats(allEvents)
	return nil
}

// writeWeatherCSV emits an ISD-style global-hourly file. Most rows carry
// clean readings; a scattering of rejected flags, missing sentinels, and
// multi-hour accumulation periods exercises the filtering paths.
func writeWeatherCSV(path, station string, start time.Time, hours int, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"STATION", "DATE", "TMP", "AA1"}); err != nil {
		return err
	}

	compactStation := strings.ReplaceAll(station, "-", "")
	for h := 0; h < hours; h++ {
		// Observations land at :53 past the hour like real station reports.
		obsTime := start.Add(time.Duration(h)*time.Hour + 53*time.Minute)
		row := []string{
			compactStation,
			obsTime.Format("2006-01-02T15:04:05"),
			mockTMP(h, rng),
			mockAA1(h, rng),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func mockTMP(h int, rng *rand.Rand) string {
	switch {
	case h%37 == 5:
		return "+9999,9" // unmeasured
	case h%29 == 3:
		return fmt.Sprintf("%+05d,2", 50+rng.Intn(100)) // suspect flag, rejected
	default:
		// Daily cycle between roughly -2 and +14 C, in tenths.
		tenths := 60 + 80*dayCycle(h) + float64(rng.Intn(21)-10)
		return fmt.Sprintf("%+05d,1", int(tenths))
	}
}

func mockAA1(h int, rng *rand.Rand) string {
	switch {
	case h%24 == 23:
		return "24,0120,9,1" // daily accumulation, excluded from hourly sums
	case h%11 == 0:
		return fmt.Sprintf("01,%04d,9,1", rng.Intn(40)) // hourly depth
	case h%17 == 2:
		return "01,9999,9,9" // depth sentinel
	default:
		return "" // no precipitation group
	}
}

// dayCycle returns a smooth -1..1 factor over a 24 hour period, coldest
// around 04:00 and warmest around 16:00.
func dayCycle(h int) float64 {
	hour := h % 24
	switch {
	case hour < 4:
		return -1 + float64(hour)*0.1
	case hour < 16:
		return -0.6 + float64(hour-4)*0.133
	default:
		return 1 - float64(hour-16)*0.25
	}
}

// generateCounterEvents produces a plausible hourly ridership series with
// the shapes the cleaner looks for: overnight zeros, a stuck-sensor run of
// identical values, and one extreme spike.
func generateCounterEvents(location string, start time.Time, hours int, rng *rand.Rand) []domain.RawCounterEvent {
	events := make([]domain.RawCounterEvent, 0, hours)
	for h := 0; h < hours; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		hour := h % 24

		var count int
		switch {
		case hour < 5:
			count = 0 // overnight
		case h >= 100 && h < 105:
			count = 77 // stuck sensor
		case h == 200:
			count = 640 // festival spike
		case hour >= 7 && hour <= 9, hour >= 16 && hour <= 18:
			count = 150 + rng.Intn(200) // commute peaks
		default:
			count = 20 + rng.Intn(80)
		}

		events = append(events, domain.RawCounterEvent{
			Location:   location,
			ObservedAt: ts,
			Count:      count,
		})
	}
	return events
}

type counterRow struct {
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
	Count     int    `json:"count"`
}

func writeCounterJSON(path string, events []domain.RawCounterEvent) error {
	rows := make([]counterRow, len(events))
	for i, ev := range events {
		rows[i] = counterRow{
			Location:  ev.Location,
			Timestamp: ev.ObservedAt.Format("2006-01-02 15:04:05"),
			Count:     ev.Count,
		}
	}
	return writeJSON(path, rows)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// printStats runs the real cleaner over the generated events and reports the
// counts test assertions will want.
func printStats(events []domain.RawCounterEvent) {
	cleaned := domain.CleanCounterSeries(events, domain.DefaultCleanerConfig())

	var zeroAdjusted, repeatedRuns, extremes int
	for _, rec := range cleaned {
		if rec.WasZeroAdjusted {
			zeroAdjusted++
		}
		switch rec.Anomaly {
		case domain.AnomalyRepeatedValueRun:
			repeatedRuns++
		case domain.AnomalyExtremeValue:
			extremes++
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total counter events: %d\n", len(events))
	fmt.Printf("Zero-adjusted: %d\n", zeroAdjusted)
	fmt.Printf("Repeated-value-run flags: %d\n", repeatedRuns)
	fmt.Printf("Extreme-value flags: %d\n", extremes)
}
