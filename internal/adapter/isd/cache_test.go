package isd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
)

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (s *countingSource) FetchYear(_ context.Context, station string, year int) ([]domain.RawWeatherObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[fmt.Sprintf("%s|%d", station, year)]++
	return []domain.RawWeatherObservation{{
		StationID:  station,
		ObservedAt: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func (s *countingSource) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func TestCachedSource_SecondFetchHitsCache(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 4, observability.NewMetricsForTesting())

	first, err := cached.FetchYear(context.Background(), testStation, 2015)
	require.NoError(t, err)
	second, err := cached.FetchYear(context.Background(), testStation, 2015)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.totalCalls(), "second fetch should be served from cache")
}

func TestCachedSource_DistinctYearsMiss(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 4, observability.NewMetricsForTesting())

	_, err := cached.FetchYear(context.Background(), testStation, 2014)
	require.NoError(t, err)
	_, err = cached.FetchYear(context.Background(), testStation, 2015)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.totalCalls())
}

func TestCachedSource_ErrorsAreNotCached(t *testing.T) {
	inner := &countingSource{err: domain.ErrSourceUnavailable}
	cached := NewCachedSource(inner, 4, observability.NewMetricsForTesting())

	_, err := cached.FetchYear(context.Background(), testStation, 2015)
	require.Error(t, err)

	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	rows, err := cached.FetchYear(context.Background(), testStation, 2015)
	require.NoError(t, err, "a failed fetch must be retryable")
	assert.Len(t, rows, 1)
}

func TestCachedSource_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 2, observability.NewMetricsForTesting())

	ctx := context.Background()
	_, _ = cached.FetchYear(ctx, testStation, 2014)
	_, _ = cached.FetchYear(ctx, testStation, 2015)
	_, _ = cached.FetchYear(ctx, testStation, 2014) // refresh 2014
	_, _ = cached.FetchYear(ctx, testStation, 2016) // evicts 2015

	before := inner.totalCalls()
	_, _ = cached.FetchYear(ctx, testStation, 2014) // still cached
	assert.Equal(t, before, inner.totalCalls())

	_, _ = cached.FetchYear(ctx, testStation, 2015) // evicted, refetches
	assert.Equal(t, before+1, inner.totalCalls())
}

func TestCachedSource_PropagatesInnerError(t *testing.T) {
	inner := &countingSource{err: errors.New("boom")}
	cached := NewCachedSource(inner, 2, observability.NewMetricsForTesting())

	_, err := cached.FetchYear(context.Background(), testStation, 2015)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
