package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
)

// WeatherSource yields raw weather observations for one station-year.
// Results for a past year are stable, so implementations may cache by year.
type WeatherSource interface {
	FetchYear(ctx context.Context, station string, year int) ([]domain.RawWeatherObservation, error)
}

// CounterSource yields raw counter events for one physical counter site.
type CounterSource interface {
	FetchLocation(ctx context.Context, location string) ([]domain.RawCounterEvent, error)
}

// TableSink receives the complete joined analysis table.
type TableSink interface {
	WriteTable(ctx context.Context, records []domain.JoinedRecord) error
}

// Options bundle the data-selection and cleaning policy for a pipeline.
type Options struct {
	Station   string
	Years     []int
	Locations []string

	FlagPolicy domain.FlagPolicy
	Cleaner    domain.CleanerConfig
}

// RunSummary describes one completed batch run, exposed via /statusz.
type RunSummary struct {
	WeatherRows   int           `json:"weather_rows"`
	WeatherHours  int           `json:"weather_hours"`
	CounterRows   int           `json:"counter_rows"`
	JoinedRows    int           `json:"joined_rows"`
	UnmatchedRows int           `json:"unmatched_rows"`
	ZeroAdjusted  int           `json:"zero_adjusted"`
	AnomalousRows int           `json:"anomalous_rows"`
	Duration      time.Duration `json:"duration_ns"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Pipeline orchestrates one fetch-clean-join-export batch.
type Pipeline struct {
	weather  WeatherSource
	counters CounterSource
	sinks    []TableSink
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options

	ready atomic.Bool

	mu      sync.Mutex
	lastRun *RunSummary
}

// New creates a Pipeline with the given sources, sinks, and observability.
func New(weather WeatherSource, counters CounterSource, sinks []TableSink, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		weather:  weather,
		counters: counters,
		sinks:    sinks,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// run, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent completed run.
func (p *Pipeline) LastRun() (RunSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRun == nil {
		return RunSummary{}, false
	}
	return *p.lastRun, true
}

// Run executes one complete batch: fetch both raw feeds, clean them, join
// them, and write the table to every sink. Source failures abort the run
// and surface to the caller; malformed rows were already dropped inside the
// adapters and do not reach this level.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	p.logger.Info("run started",
		"station", p.opts.Station,
		"years", p.opts.Years,
		"locations", p.opts.Locations,
	)

	rawWeather, err := p.fetchWeather(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	rawEvents, err := p.fetchCounters(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	p.metrics.WeatherRowsConsumed.Add(float64(len(rawWeather)))
	p.metrics.CounterRowsConsumed.Add(float64(len(rawEvents)))

	hourly := domain.AggregateHourly(rawWeather, p.opts.FlagPolicy)
	cleaned := domain.CleanCounterSeries(rawEvents, p.opts.Cleaner)
	joined := domain.JoinHourly(cleaned, hourly)

	summary := p.summarize(rawWeather, hourly, cleaned, joined)
	summary.Duration = time.Since(start)
	summary.CompletedAt = time.Now().UTC()

	for _, sink := range p.sinks {
		if err := sink.WriteTable(ctx, joined); err != nil {
			return RunSummary{}, fmt.Errorf("write joined table: %w", err)
		}
	}

	p.metrics.JoinedRows.Add(float64(summary.JoinedRows))
	p.metrics.RunDuration.Observe(summary.Duration.Seconds())

	p.mu.Lock()
	p.lastRun = &summary
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("run completed",
		"weather_rows", summary.WeatherRows,
		"weather_hours", summary.WeatherHours,
		"counter_rows", summary.CounterRows,
		"joined_rows", summary.JoinedRows,
		"unmatched_rows", summary.UnmatchedRows,
		"duration", summary.Duration,
	)
	return summary, nil
}

// fetchWeather pulls every configured year concurrently. Yearly files are
// independent, so a fan-out keeps the slowest year from serializing the run.
func (p *Pipeline) fetchWeather(ctx context.Context) ([]domain.RawWeatherObservation, error) {
	results := make([][]domain.RawWeatherObservation, len(p.opts.Years))

	g, gctx := errgroup.WithContext(ctx)
	for i, year := range p.opts.Years {
		g.Go(func() error {
			fetchStart := time.Now()
			rows, err := p.weather.FetchYear(gctx, p.opts.Station, year)
			if err != nil {
				return fmt.Errorf("fetch weather year %d: %w", year, err)
			}
			p.metrics.FetchDuration.WithLabelValues("weather").Observe(time.Since(fetchStart).Seconds())
			p.logger.Debug("weather year fetched", "year", year, "rows", len(rows))
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.RawWeatherObservation
	for _, rows := range results {
		merged = append(merged, rows...)
	}
	return merged, nil
}

// fetchCounters pulls every configured location concurrently.
func (p *Pipeline) fetchCounters(ctx context.Context) ([]domain.RawCounterEvent, error) {
	results := make([][]domain.RawCounterEvent, len(p.opts.Locations))

	g, gctx := errgroup.WithContext(ctx)
	for i, location := range p.opts.Locations {
		g.Go(func() error {
			fetchStart := time.Now()
			rows, err := p.counters.FetchLocation(gctx, location)
			if err != nil {
				return fmt.Errorf("fetch counter location %s: %w", location, err)
			}
			p.metrics.FetchDuration.WithLabelValues("counter").Observe(time.Since(fetchStart).Seconds())
			p.logger.Debug("counter location fetched", "location", location, "rows", len(rows))
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []domain.RawCounterEvent
	for _, rows := range results {
		merged = append(merged, rows...)
	}
	return merged, nil
}

func (p *Pipeline) summarize(
	rawWeather []domain.RawWeatherObservation,
	hourly []domain.CleanedHourlyWeather,
	cleaned []domain.CleanedCounterRecord,
	joined []domain.JoinedRecord,
) RunSummary {
	summary := RunSummary{
		WeatherRows:  len(rawWeather),
		WeatherHours: len(hourly),
		CounterRows:  len(cleaned),
		JoinedRows:   len(joined),
	}

	for _, rec := range cleaned {
		if rec.WasZeroAdjusted {
			summary.ZeroAdjusted++
			p.metrics.ZeroAdjusted.Inc()
		}
		if rec.Anomaly != domain.AnomalyNone {
			summary.AnomalousRows++
			p.metrics.AnomaliesFlagged.WithLabelValues(string(rec.Anomaly)).Inc()
		}
	}
	for _, rec := range joined {
		if !rec.WeatherMatched {
			summary.UnmatchedRows++
			p.metrics.JoinMisses.Inc()
		}
	}
	return summary
}
