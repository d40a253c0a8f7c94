package domain

import (
	"math"
	"sort"
	"time"
)

// AnomalyFlag labels a cleaned counter record suspected to be bad sensor
// output. Flagged records are retained; downstream consumers decide whether
// to interpolate or exclude.
type AnomalyFlag string

const (
	// AnomalyNone means no anomaly condition matched.
	AnomalyNone AnomalyFlag = ""

	// AnomalyRepeatedValueRun marks every record after the first in a run
	// of consecutive identical non-zero counts at one location.
	AnomalyRepeatedValueRun AnomalyFlag = "repeated_value_run"

	// AnomalyExtremeValue marks a count above the configured threshold.
	AnomalyExtremeValue AnomalyFlag = "extreme_value"
)

// RawCounterEvent is one observation from a physical counter site. The
// timestamp is civil wall-clock time at the site.
type RawCounterEvent struct {
	Location   string
	ObservedAt time.Time
	Count      int
}

// CleanedCounterRecord extends a raw event with the adjusted count, the log
// transform, calendar features, and the anomaly flag.
type CleanedCounterRecord struct {
	Location   string
	ObservedAt time.Time
	Count      int

	AdjustedCount   int
	LogCount        float64
	WasZeroAdjusted bool

	DayOfWeek int // ISO: 1=Monday .. 7=Sunday
	Weekend   bool

	Anomaly     AnomalyFlag
	ProcessedAt time.Time
}

// CleanerConfig holds the tunables for counter cleaning.
type CleanerConfig struct {
	// ExtremeValueThreshold flags counts strictly above it as ExtremeValue.
	ExtremeValueThreshold int

	// RunMinLength is the run length at which identical non-zero counts
	// start being flagged. Must be at least 2.
	RunMinLength int
}

// DefaultCleanerConfig returns the production defaults: threshold 500,
// minimum run length 3.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		ExtremeValueThreshold: 500,
		RunMinLength:          3,
	}
}

// CleanCounterSeries cleans raw counter events into analysis-ready records.
// Events are sorted by location then timestamp first: anomaly-run detection
// requires strictly ascending per-location order, and the sort also makes
// the output ordering deterministic across runs.
//
// A zero count becomes an adjusted count of one (tagged WasZeroAdjusted) so
// the log transform is defined; LogCount is the natural log of the adjusted
// count. A record carries at most one anomaly flag, with RepeatedValueRun
// taking precedence over ExtremeValue.
func CleanCounterSeries(events []RawCounterEvent, cfg CleanerConfig) []CleanedCounterRecord {
	ordered := make([]RawCounterEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Location != ordered[j].Location {
			return ordered[i].Location < ordered[j].Location
		}
		return ordered[i].ObservedAt.Before(ordered[j].ObservedAt)
	})

	now := clock.Now()
	records := make([]CleanedCounterRecord, 0, len(ordered))

	// Run-length state, reset at each location boundary.
	var (
		currentLocation string
		lastValue       int
		runLength       int
	)

	for i, ev := range ordered {
		if i == 0 || ev.Location != currentLocation {
			currentLocation = ev.Location
			lastValue = ev.Count
			runLength = 1
		} else if ev.Count == lastValue && ev.Count != 0 {
			runLength++
		} else {
			lastValue = ev.Count
			runLength = 1
		}

		rec := CleanedCounterRecord{
			Location:      ev.Location,
			ObservedAt:    ev.ObservedAt,
			Count:         ev.Count,
			AdjustedCount: ev.Count,
			DayOfWeek:     isoWeekday(ev.ObservedAt),
			ProcessedAt:   now,
		}
		rec.Weekend = rec.DayOfWeek > 5

		if ev.Count == 0 {
			rec.AdjustedCount = 1
			rec.WasZeroAdjusted = true
		}
		rec.LogCount = math.Log(float64(rec.AdjustedCount))

		switch {
		case runLength >= cfg.RunMinLength:
			rec.Anomaly = AnomalyRepeatedValueRun
		case ev.Count > cfg.ExtremeValueThreshold:
			rec.Anomaly = AnomalyExtremeValue
		}

		records = append(records, rec)
	}
	return records
}

// isoWeekday maps time.Weekday (Sunday=0) to the ISO convention (Monday=1,
// Sunday=7) so the weekend is the contiguous 6-7 block.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
