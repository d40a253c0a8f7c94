// Package domain models hourly bicycle-counter events and ISD weather
// observations, and implements the pure transformations that clean and
// join them.
//
// # Weather Source
//
// Weather rows come from NOAA Integrated Surface Data (ISD) global-hourly
// files, one CSV file per station per year. Each row carries an observation
// instant (UTC) plus composite measurement fields; the adapter decodes the
// two this pipeline uses:
//
//	TMP: "<sign><tenths of °C>,<quality flag>"   e.g. "+0200,1" = 20.0°C, flag 1
//	AA1: "<period hours>,<tenths of mm>,<condition>,<quality flag>"
//	     e.g. "01,0050,9,1" = 5.0mm over a 1-hour period, flag 1
//
// The literal raw value +9999 means the sensor reported nothing; it is
// treated as missing no matter what the quality flag says.
//
// # Quality Flags
//
// Each measurement carries a categorical quality flag. Flags in a field's
// accept set keep the reading; anything else becomes missing:
//
//	1  passed all quality checks
//	5  passed, value originally suspect
//	A  accepted as good despite failing one check
//	6  suspect (NCEI)
//	9  gross-limits check not run; empirically marks absent sensor data
//	P  value replaced by the validator
//
// Temperature defaults to accept set {1,5,A}; precipitation to {1,5}, with
// "A" includable through configuration. Flag 9 is rejected.
//
// # Counter Source
//
// Counter events are per-location rows with a wall-clock timestamp and a
// non-negative count. Timestamps are interpreted in one fixed civil time
// zone so calendar features (day of week, weekend) stay consistent across
// daylight-saving transitions in the raw feed.
//
// Cleaning replaces a count of exactly zero with one so the log transform
// is defined everywhere; the substitution is an audited distortion, tagged
// WasZeroAdjusted so a true count of one stays distinguishable.
//
// # Anomaly Detection
//
// Runs of consecutive identical non-zero counts at one location suggest a
// stalled sensor; once a run reaches the configured minimum length (three
// by default), that record and each further one is flagged
// RepeatedValueRun. Counts above a configurable threshold
// are flagged ExtremeValue and retained. A record carries at most one flag;
// RepeatedValueRun wins when both conditions hold. See [CleanCounterSeries].
//
// # Missing Values
//
// A missing measurement is a value state, not an error: nil *float64
// pointers propagate through filtering, aggregation, and the join. An hour
// with no weather row joins as missing weather fields, never as a dropped
// counter row.
package domain
