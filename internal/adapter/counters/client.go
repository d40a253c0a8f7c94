// Package counters fetches raw bicycle-counter events from the counter
// feed, one JSON document per physical counter site.
package counters

import (
	"context"
	"encoding/json"
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

// timestampLayouts are tried in order. The feed has drifted between export
// formats over the years, so both separators appear in historical data.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
}

// rawRow mirrors the feed's JSON row.
type rawRow struct {
	Location  string     `json:"location"`
	Timestamp string     `json:"timestamp"`
	Count     flexNumber `json:"count"`
}

// flexNumber holds a count that arrives as a JSON number or a quoted
// string depending on the export vintage. Validation happens per row, so
// one bad cell cannot fail the whole document decode.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		*n = flexNumber(unquoted)
		return nil
	}
	*n = flexNumber(data)
	return nil
}

// Client implements pipeline.CounterSource against the counter feed.
// Documents live at {baseURL}/counters/{location}.json. Timestamps are
// wall-clock local time and are interpreted in the configured civil zone.
type Client struct {
	httpClient *http.Client
	baseURL    string
	civilZone  *time.Location
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a counter feed client.
func NewClient(baseURL string, civilZone *time.Location, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		civilZone:  civilZone,
		logger:     logger,
		metrics:    metrics,
	}
}

// FetchLocation downloads and parses the event feed for one counter site.
// Rows without a parseable timestamp or count are dropped and counted;
// transport and upstream failures wrap domain.ErrSourceUnavailable.
func (c *Client) FetchLocation(ctx context.Context, location string) ([]domain.RawCounterEvent, error) {
	u := fmt.Sprintf("%s/counters/%s.json", c.baseURL, location)

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

	var rows []rawRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}

	events := make([]domain.RawCounterEvent, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		event, err := c.parseRow(location, row)
		if err != nil {
			dropped++
			continue
		}
		events = append(events, event)
	}
	if dropped > 0 {
		c.metrics.RowsDropped.WithLabelValues("counter").Add(float64(dropped))
		c.logger.Warn("dropped malformed counter rows", "location", location, "dropped", dropped)
	}
	return events, nil
}

func (c *Client) parseRow(location string, row rawRow) (domain.RawCounterEvent, error) {
	observedAt, err := parseCivilTimestamp(row.Timestamp, c.civilZone)
	if err != nil {
		return domain.RawCounterEvent{}, err
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(row.Count)))
	if err != nil || count < 0 {
		return domain.RawCounterEvent{}, fmt.Errorf("%w: bad count %q", domain.ErrMalformedRecord, row.Count)
	}

	// Rows may carry their own location label; the path segment wins, but a
	// contradictory label is a malformed row rather than a silent reassignment.
	if row.Location != "" && row.Location != location {
		return domain.RawCounterEvent{}, fmt.Errorf("%w: location %q in %s feed", domain.ErrMalformedRecord, row.Location, location)
	}

	return domain.RawCounterEvent{
		Location:   location,
		ObservedAt: observedAt,
		Count:      count,
	}, nil
}

func parseCivilTimestamp(value string, zone *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", domain.ErrMalformedRecord)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad timestamp %q", domain.ErrMalformedRecord, value)
}
