package counters

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
)

var est = time.FixedZone("EST", -5*3600)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		civilZone:  est,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    observability.NewMetricsForTesting(),
	}
}

func TestClient_FetchLocation_Success(t *testing.T) {
	const body = `[
		{"location":"berri1","timestamp":"2015-04-01 13:00:00","count":152},
		{"location":"berri1","timestamp":"2015-04-01 14:00:00","count":"97"}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/counters/berri1.json", r.URL.Path)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchLocation(context.Background(), "berri1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "berri1", events[0].Location)
	assert.Equal(t, time.Date(2015, 4, 1, 13, 0, 0, 0, est), events[0].ObservedAt)
	assert.Equal(t, 152, events[0].Count)
	assert.Equal(t, 97, events[1].Count, "quoted counts from older exports still parse")
}

func TestClient_FetchLocation_DropsMalformedRows(t *testing.T) {
	const body = `[
		{"timestamp":"2015-04-01 13:00:00","count":152},
		{"timestamp":"","count":10},
		{"timestamp":"yesterday-ish","count":10},
		{"timestamp":"2015-04-01 15:00:00","count":"many"},
		{"timestamp":"2015-04-01 16:00:00","count":-4},
		{"location":"rachel1","timestamp":"2015-04-01 17:00:00","count":5},
		{"timestamp":"2015-04-01 18:00:00","count":31}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchLocation(context.Background(), "berri1")
	require.NoError(t, err, "malformed rows are dropped, never fatal to the batch")
	require.Len(t, events, 2)
	assert.Equal(t, 152, events[0].Count)
	assert.Equal(t, 31, events[1].Count)
}

func TestClient_FetchLocation_AlternateTimestampFormats(t *testing.T) {
	const body = `[
		{"timestamp":"2015-04-01 13:00","count":1},
		{"timestamp":"2015/04/01 14:00:00","count":2}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchLocation(context.Background(), "berri1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, time.Date(2015, 4, 1, 13, 0, 0, 0, est), events[0].ObservedAt)
	assert.Equal(t, time.Date(2015, 4, 1, 14, 0, 0, 0, est), events[1].ObservedAt)
}

func TestClient_FetchLocation_CivilZoneApplied(t *testing.T) {
	const body = `[{"timestamp":"2015-04-01 08:30:00","count":25}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	events, err := c.FetchLocation(context.Background(), "berri1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	// 08:30 EST is 13:30 UTC: wall clock is interpreted in the civil zone.
	assert.Equal(t, time.Date(2015, 4, 1, 13, 30, 0, 0, time.UTC), events[0].ObservedAt.UTC())
}

func TestClient_FetchLocation_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchLocation(context.Background(), "berri1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestClient_FetchLocation_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.FetchLocation(context.Background(), "berri1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
