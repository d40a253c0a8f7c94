// Package isd fetches and parses NOAA Integrated Surface Data global-hourly
// CSV files, one file per station per year.
package isd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
)

const observedAtLayout = "2006-01-02T15:04:05"

// Client implements pipeline.WeatherSource against the ISD global-hourly
// archive. Files live at {baseURL}/{year}/{station}.csv.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an ISD archive client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchYear downloads and parses one station-year file. Rows that cannot be
// parsed are dropped and counted, never fatal; transport and upstream
// failures wrap domain.ErrSourceUnavailable.
func (c *Client) FetchYear(ctx context.Context, station string, year int) ([]domain.RawWeatherObservation, error) {
	u := fmt.Sprintf("%s/%d/%s.csv", c.baseURL, year, station)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", domain.ErrSourceUnavailable, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d from %s: %s", domain.ErrSourceUnavailable, resp.StatusCode, u, body)
	}

	observations, dropped, err := parseFile(resp.Body, station)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	if dropped > 0 {
		c.metrics.RowsDropped.WithLabelValues("weather").Add(float64(dropped))
		c.logger.Warn("dropped malformed weather rows", "station", station, "year", year, "dropped", dropped)
	}
	return observations, nil
}

// parseFile reads an ISD global-hourly CSV stream. The header row names the
// columns; only DATE, TMP, and AA1 are consumed. Returns the parsed rows
// and the number of malformed rows dropped.
func parseFile(r io.Reader, station string) ([]domain.RawWeatherObservation, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // AA1 is absent from some station files

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	dateIdx, ok := col["DATE"]
	if !ok {
		return nil, 0, fmt.Errorf("header missing DATE column")
	}
	tmpIdx, hasTmp := col["TMP"]
	aa1Idx, hasAA1 := col["AA1"]

	var (
		observations []domain.RawWeatherObservation
		dropped      int
	)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A structurally broken line is a malformed record, not a
			// reason to abandon the rest of the file.
			dropped++
			continue
		}

		obs, err := parseRow(row, station, dateIdx, tmpIdx, hasTmp, aa1Idx, hasAA1)
		if err != nil {
			dropped++
			continue
		}
		observations = append(observations, obs)
	}
	return observations, dropped, nil
}

func parseRow(row []string, station string, dateIdx, tmpIdx int, hasTmp bool, aa1Idx int, hasAA1 bool) (domain.RawWeatherObservation, error) {
	if dateIdx >= len(row) {
		return domain.RawWeatherObservation{}, fmt.Errorf("%w: short row", domain.ErrMalformedRecord)
	}
	observedAt, err := time.ParseInLocation(observedAtLayout, strings.TrimSpace(row[dateIdx]), time.UTC)
	if err != nil {
		return domain.RawWeatherObservation{}, fmt.Errorf("%w: bad DATE %q", domain.ErrMalformedRecord, row[dateIdx])
	}

	obs := domain.RawWeatherObservation{
		StationID:            station,
		ObservedAt:           observedAt,
		TemperatureRaw:       domain.RawMissingSentinel,
		TemperatureQuality:   "9",
		PrecipitationRaw:     domain.RawMissingSentinel,
		PrecipitationQuality: "9",
	}

	if hasTmp && tmpIdx < len(row) {
		raw, flag, err := parseTMP(row[tmpIdx])
		if err != nil {
			return domain.RawWeatherObservation{}, err
		}
		obs.TemperatureRaw = raw
		obs.TemperatureQuality = flag
	}
	if hasAA1 && aa1Idx < len(row) {
		period, raw, flag, err := parseAA1(row[aa1Idx])
		if err != nil {
			return domain.RawWeatherObservation{}, err
		}
		obs.PrecipitationPeriodHours = period
		obs.PrecipitationRaw = raw
		obs.PrecipitationQuality = flag
	}
	return obs, nil
}

// parseTMP decodes the ISD composite temperature field
// "<sign><tenths>,<flag>", e.g. "+0200,1". An empty field means the station
// did not report temperature at this instant.
func parseTMP(field string) (int, domain.QualityFlag, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return domain.RawMissingSentinel, "9", nil
	}

	value, flag, ok := strings.Cut(field, ",")
	if !ok {
		return 0, "", fmt.Errorf("%w: bad TMP %q", domain.ErrMalformedRecord, field)
	}
	raw, err := strconv.Atoi(strings.TrimPrefix(value, "+"))
	if err != nil {
		return 0, "", fmt.Errorf("%w: bad TMP value %q", domain.ErrMalformedRecord, value)
	}
	return raw, domain.QualityFlag(strings.TrimSpace(flag)), nil
}

// parseAA1 decodes the ISD liquid-precipitation field
// "<period hours>,<tenths of mm>,<condition>,<flag>", e.g. "01,0050,9,1".
// An empty field means no precipitation group was reported.
func parseAA1(field string) (int, int, domain.QualityFlag, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, domain.RawMissingSentinel, "9", nil
	}

	parts := strings.Split(field, ",")
	if len(parts) != 4 {
		return 0, 0, "", fmt.Errorf("%w: bad AA1 %q", domain.ErrMalformedRecord, field)
	}
	period, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad AA1 period %q", domain.ErrMalformedRecord, parts[0])
	}
	raw, err := strconv.Atoi(strings.TrimPrefix(parts[1], "+"))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: bad AA1 depth %q", domain.ErrMalformedRecord, parts[1])
	}
	return period, raw, domain.QualityFlag(strings.TrimSpace(parts[3])), nil
}
