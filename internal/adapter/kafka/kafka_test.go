package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	temp := 2.5
	processed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rec := domain.JoinedRecord{
		CleanedCounterRecord: domain.CleanedCounterRecord{
			Location:      "berri1",
			ObservedAt:    time.Date(2015, 4, 1, 13, 0, 0, 0, time.UTC),
			Count:         152,
			AdjustedCount: 152,
			LogCount:      5.5,
			DayOfWeek:     3,
			Anomaly:       domain.AnomalyExtremeValue,
			ProcessedAt:   processed,
		},
		TemperatureC:   &temp,
		WeatherMatched: true,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("berri1|2015-04-01T13:00:00Z"), msg.Key)
	assert.JSONEq(t, `{
		"location": "berri1",
		"timestamp_utc": "2015-04-01T13:00:00Z",
		"count": 152,
		"adjusted_count": 152,
		"log_count": 5.5,
		"day_of_week": 3,
		"weekend": false,
		"was_zero_adjusted": false,
		"anomaly": "extreme_value",
		"temperature_c": 2.5,
		"precipitation_mm": null,
		"weather_matched": true
	}`, string(msg.Value))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "location", msg.Headers[0].Key)
	assert.Equal(t, []byte("berri1"), msg.Headers[0].Value)
	assert.Equal(t, "processed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2026-08-29T12:00:00Z"), msg.Headers[1].Value)
}

func TestSerializeToMessage_CivilTimestampNormalizedToUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	rec := domain.JoinedRecord{
		CleanedCounterRecord: domain.CleanedCounterRecord{
			Location:   "rachel1",
			ObservedAt: time.Date(2015, 4, 1, 8, 0, 0, 0, est),
		},
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("rachel1|2015-04-01T13:00:00Z"), msg.Key)
}
