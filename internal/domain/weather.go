package domain

import (
	"strings"
	"time"
)

// RawMissingSentinel is the ISD encoding for "no measurement". A raw field
// equal to this value is missing regardless of its quality flag.
const RawMissingSentinel = 9999

// QualityFlag is the categorical quality code attached to one raw
// measurement. See the package documentation for the flag table.
type QualityFlag string

// FlagSet is an accept set of quality flags. Membership keeps a reading;
// anything outside the set becomes missing.
type FlagSet map[QualityFlag]struct{}

// NewFlagSet builds a FlagSet from flag codes. Whitespace is trimmed and
// empty codes are ignored.
func NewFlagSet(flags ...string) FlagSet {
	s := make(FlagSet, len(flags))
	for _, f := range flags {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		s[QualityFlag(f)] = struct{}{}
	}
	return s
}

// Contains reports whether the flag is in the accept set.
func (s FlagSet) Contains(f QualityFlag) bool {
	_, ok := s[f]
	return ok
}

// FlagPolicy holds the per-field accept sets used when decoding raw
// weather observations.
type FlagPolicy struct {
	TemperatureAccept   FlagSet
	PrecipitationAccept FlagSet
}

// DefaultFlagPolicy returns the accept sets used in production: {1,5,A} for
// temperature, {1,5} for precipitation.
func DefaultFlagPolicy() FlagPolicy {
	return FlagPolicy{
		TemperatureAccept:   NewFlagSet("1", "5", "A"),
		PrecipitationAccept: NewFlagSet("1", "5"),
	}
}

// RawWeatherObservation is one station observation as decoded from the ISD
// feed, before quality filtering. Raw values keep the tenths encoding; the
// two quality flags are independent, so one field may be valid while the
// other is missing.
type RawWeatherObservation struct {
	StationID  string
	ObservedAt time.Time // UTC observation instant

	TemperatureRaw     int // tenths of °C; RawMissingSentinel = unmeasured
	TemperatureQuality QualityFlag

	PrecipitationRaw         int // tenths of mm; RawMissingSentinel = unmeasured
	PrecipitationQuality     QualityFlag
	PrecipitationPeriodHours int // accumulation period: 1, 6, or 24
}

// DecodeTemperature applies the quality policy to the observation's
// temperature and returns degrees Celsius, or nil when the reading is
// missing or rejected. The sentinel is checked before the flag: an
// unmeasured value stays missing even with an accepted flag.
func DecodeTemperature(obs RawWeatherObservation, accept FlagSet) *float64 {
	return decodeTenths(obs.TemperatureRaw, obs.TemperatureQuality, accept)
}

// DecodePrecipitation applies the quality policy to the observation's
// precipitation depth and returns millimeters, or nil when missing or
// rejected.
func DecodePrecipitation(obs RawWeatherObservation, accept FlagSet) *float64 {
	return decodeTenths(obs.PrecipitationRaw, obs.PrecipitationQuality, accept)
}

func decodeTenths(raw int, flag QualityFlag, accept FlagSet) *float64 {
	if raw == RawMissingSentinel || raw == -RawMissingSentinel {
		return nil
	}
	if !accept.Contains(flag) {
		return nil
	}
	v := float64(raw) / 10.0
	return &v
}
