package domain

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CleanedHourlyWeather is one row of the cleaned hourly weather table:
// exactly one row per hour bucket that had at least one source observation.
// A nil field means every same-hour reading was missing or rejected.
type CleanedHourlyWeather struct {
	Hour            time.Time // UTC, truncated to the hour
	TemperatureC    *float64
	PrecipitationMM *float64
}

// HourBucket floors a timestamp to the start of its containing hour in UTC.
// The same rule keys both aggregation and the join.
func HourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// hourAccum collects the valid same-hour readings for both fields.
type hourAccum struct {
	temps  []float64
	precip []float64
}

// AggregateHourly collapses filtered observations into one row per hour
// bucket. Temperature is intensive and averaged across all valid same-hour
// readings; precipitation is additive, so valid one-hour-period depths that
// coincide in a bucket are summed. Six-hour and daily accumulation periods
// are excluded: reconciling overlapping periods is a separate problem.
// Output rows are ordered by hour ascending.
func AggregateHourly(observations []RawWeatherObservation, policy FlagPolicy) []CleanedHourlyWeather {
	buckets := make(map[int64]*hourAccum)
	hours := make(map[int64]time.Time)

	for _, obs := range observations {
		hour := HourBucket(obs.ObservedAt)
		key := hour.Unix()
		acc, ok := buckets[key]
		if !ok {
			acc = &hourAccum{}
			buckets[key] = acc
			hours[key] = hour
		}

		if temp := DecodeTemperature(obs, policy.TemperatureAccept); temp != nil {
			acc.temps = append(acc.temps, *temp)
		}
		if obs.PrecipitationPeriodHours == 1 {
			if depth := DecodePrecipitation(obs, policy.PrecipitationAccept); depth != nil {
				acc.precip = append(acc.precip, *depth)
			}
		}
	}

	keys := make([]int64, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]CleanedHourlyWeather, 0, len(keys))
	for _, key := range keys {
		acc := buckets[key]
		row := CleanedHourlyWeather{Hour: hours[key]}
		if len(acc.temps) > 0 {
			mean := stat.Mean(acc.temps, nil)
			row.TemperatureC = &mean
		}
		if len(acc.precip) > 0 {
			total := floats.Sum(acc.precip)
			row.PrecipitationMM = &total
		}
		rows = append(rows, row)
	}
	return rows
}
