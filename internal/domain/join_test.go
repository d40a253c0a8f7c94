package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleaned(location string, at time.Time, count int) CleanedCounterRecord {
	return CleanedCounterRecord{
		Location:      location,
		ObservedAt:    at,
		Count:         count,
		AdjustedCount: count,
	}
}

func TestJoinHourly_LeftJoin(t *testing.T) {
	hour := time.Date(2015, 4, 1, 13, 0, 0, 0, time.UTC)
	weather := []CleanedHourlyWeather{
		{Hour: hour, TemperatureC: f(21.0), PrecipitationMM: f(0.3)},
	}

	counters := []CleanedCounterRecord{
		cleaned("berri1", hour.Add(10*time.Minute), 152),   // matches
		cleaned("rachel1", hour.Add(45*time.Minute), 88),   // same hour, matches
		cleaned("berri1", hour.Add(3*time.Hour), 40),       // no weather hour
	}

	joined := JoinHourly(counters, weather)

	require.Len(t, joined, len(counters), "every counter record appears exactly once")

	assert.True(t, joined[0].WeatherMatched)
	require.NotNil(t, joined[0].TemperatureC)
	assert.InDelta(t, 21.0, *joined[0].TemperatureC, 1e-9)
	require.NotNil(t, joined[0].PrecipitationMM)
	assert.InDelta(t, 0.3, *joined[0].PrecipitationMM, 1e-9)

	assert.True(t, joined[1].WeatherMatched, "many counter records may share one weather hour")

	assert.False(t, joined[2].WeatherMatched)
	assert.Nil(t, joined[2].TemperatureC, "unmatched hours join as missing, not dropped")
	assert.Nil(t, joined[2].PrecipitationMM)
	assert.Equal(t, 40, joined[2].Count)
}

func TestJoinHourly_CivilTimeKeysAgainstUTCHours(t *testing.T) {
	// 08:30 EST == 13:30 UTC, so the record keys into the 13:00 UTC bucket.
	est := time.FixedZone("EST", -5*3600)
	weather := []CleanedHourlyWeather{
		{Hour: time.Date(2015, 1, 5, 13, 0, 0, 0, time.UTC), TemperatureC: f(-8.5)},
	}

	joined := JoinHourly([]CleanedCounterRecord{
		cleaned("berri1", time.Date(2015, 1, 5, 8, 30, 0, 0, est), 25),
	}, weather)

	require.Len(t, joined, 1)
	assert.True(t, joined[0].WeatherMatched)
	require.NotNil(t, joined[0].TemperatureC)
	assert.InDelta(t, -8.5, *joined[0].TemperatureC, 1e-9)
}

func TestJoinHourly_MissingValuedHourStillMatches(t *testing.T) {
	// An hour that exists with all-missing fields is a match with missing
	// values, distinct from an absent hour only via WeatherMatched.
	hour := time.Date(2015, 4, 1, 13, 0, 0, 0, time.UTC)
	joined := JoinHourly(
		[]CleanedCounterRecord{cleaned("berri1", hour, 10)},
		[]CleanedHourlyWeather{{Hour: hour}},
	)

	require.Len(t, joined, 1)
	assert.True(t, joined[0].WeatherMatched)
	assert.Nil(t, joined[0].TemperatureC)
	assert.Nil(t, joined[0].PrecipitationMM)
}

func TestJoinHourly_Deterministic(t *testing.T) {
	hour := time.Date(2015, 4, 1, 13, 0, 0, 0, time.UTC)
	weather := []CleanedHourlyWeather{{Hour: hour, TemperatureC: f(12.0)}}
	counters := []CleanedCounterRecord{
		cleaned("berri1", hour, 1),
		cleaned("berri1", hour.Add(time.Hour), 2),
		cleaned("rachel1", hour, 3),
	}

	first := JoinHourly(counters, weather)
	second := JoinHourly(counters, weather)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated join differs (-first +second):\n%s", diff)
	}
}
