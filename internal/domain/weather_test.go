package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(tempRaw int, tempFlag string, precipRaw int, precipFlag string, period int) RawWeatherObservation {
	return RawWeatherObservation{
		StationID:                "716270-99999",
		ObservedAt:               time.Date(2015, 1, 1, 0, 53, 0, 0, time.UTC),
		TemperatureRaw:           tempRaw,
		TemperatureQuality:       QualityFlag(tempFlag),
		PrecipitationRaw:         precipRaw,
		PrecipitationQuality:     QualityFlag(precipFlag),
		PrecipitationPeriodHours: period,
	}
}

func TestDecodeTemperature(t *testing.T) {
	accept := DefaultFlagPolicy().TemperatureAccept

	tests := []struct {
		name     string
		raw      int
		flag     string
		expected *float64
	}{
		{"passed all checks", 200, "1", f(20.0)},
		{"accepted despite suspect", 220, "5", f(22.0)},
		{"accepted despite failed check", -54, "A", f(-5.4)},
		{"suspect NCEI rejected", 200, "6", nil},
		{"gross limits flag rejected", 200, "9", nil},
		{"validator replaced rejected", 200, "P", nil},
		{"unknown flag rejected", 200, "Z", nil},
		{"empty flag rejected", 200, "", nil},
		{"sentinel beats accepted flag", RawMissingSentinel, "1", nil},
		{"negative sentinel", -RawMissingSentinel, "1", nil},
		{"negative reading", -312, "1", f(-31.2)},
		{"zero reading", 0, "1", f(0.0)},
		{"rejected flag with extreme value", -8999, "6", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DecodeTemperature(obs(tt.raw, tt.flag, RawMissingSentinel, "9", 0), accept)
			if tt.expected == nil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, *tt.expected, *result, 1e-9)
		})
	}
}

func TestDecodePrecipitation(t *testing.T) {
	t.Run("default policy rejects A", func(t *testing.T) {
		policy := DefaultFlagPolicy()
		result := DecodePrecipitation(obs(RawMissingSentinel, "9", 50, "A", 1), policy.PrecipitationAccept)
		assert.Nil(t, result)
	})

	t.Run("widened accept set keeps A", func(t *testing.T) {
		accept := NewFlagSet("1", "5", "A")
		result := DecodePrecipitation(obs(RawMissingSentinel, "9", 50, "A", 1), accept)
		require.NotNil(t, result)
		assert.InDelta(t, 5.0, *result, 1e-9)
	})

	t.Run("tenths decoding", func(t *testing.T) {
		result := DecodePrecipitation(obs(RawMissingSentinel, "9", 3, "1", 1), DefaultFlagPolicy().PrecipitationAccept)
		require.NotNil(t, result)
		assert.InDelta(t, 0.3, *result, 1e-9)
	})

	t.Run("sentinel is missing", func(t *testing.T) {
		result := DecodePrecipitation(obs(RawMissingSentinel, "9", RawMissingSentinel, "1", 1), DefaultFlagPolicy().PrecipitationAccept)
		assert.Nil(t, result)
	})
}

func TestFieldsFilterIndependently(t *testing.T) {
	// One field may be valid while the other is missing.
	policy := DefaultFlagPolicy()
	o := obs(200, "1", 50, "6", 1)

	temp := DecodeTemperature(o, policy.TemperatureAccept)
	require.NotNil(t, temp)
	assert.InDelta(t, 20.0, *temp, 1e-9)

	assert.Nil(t, DecodePrecipitation(o, policy.PrecipitationAccept))
}

func TestNewFlagSet(t *testing.T) {
	s := NewFlagSet(" 1", "5 ", "", "A")
	assert.True(t, s.Contains("1"))
	assert.True(t, s.Contains("5"))
	assert.True(t, s.Contains("A"))
	assert.False(t, s.Contains(""))
	assert.False(t, s.Contains("9"))
	assert.Len(t, s, 3)
}

// f returns a pointer to v, for expected-value tables.
func f(v float64) *float64 { return &v }
