package domain

// JoinedRecord is one row of the analysis table: a cleaned counter record
// with the weather fields of its exactly matching hour bucket attached.
// When no weather row covers the hour, WeatherMatched is false and both
// weather fields are nil.
type JoinedRecord struct {
	CleanedCounterRecord

	TemperatureC    *float64
	PrecipitationMM *float64
	WeatherMatched  bool
}

// JoinHourly performs the counter-preserving left join of cleaned counter
// records onto the cleaned hourly weather table. Each counter record is
// keyed by its hour-truncated timestamp and appears exactly once in the
// output; multiple records may share one weather hour. Input ordering is
// preserved.
func JoinHourly(counters []CleanedCounterRecord, weather []CleanedHourlyWeather) []JoinedRecord {
	byHour := make(map[int64]CleanedHourlyWeather, len(weather))
	for _, row := range weather {
		byHour[row.Hour.Unix()] = row
	}

	joined := make([]JoinedRecord, 0, len(counters))
	for _, rec := range counters {
		out := JoinedRecord{CleanedCounterRecord: rec}
		if row, ok := byHour[HourBucket(rec.ObservedAt).Unix()]; ok {
			out.TemperatureC = row.TemperatureC
			out.PrecipitationMM = row.PrecipitationMM
			out.WeatherMatched = true
		}
		joined = append(joined, out)
	}
	return joined
}
