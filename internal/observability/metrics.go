package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ride-weather ETL pipeline.
type Metrics struct {
	WeatherRowsConsumed prometheus.Counter
	CounterRowsConsumed prometheus.Counter
	RowsDropped         *prometheus.CounterVec // labels: source={weather,counter}

	ZeroAdjusted     prometheus.Counter
	AnomaliesFlagged *prometheus.CounterVec // labels: flag={repeated_value_run,extreme_value}

	JoinedRows prometheus.Counter
	JoinMisses prometheus.Counter

	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram
	FetchDuration   *prometheus.HistogramVec // labels: source={weather,counter}

	WeatherCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.WeatherRowsConsumed,
		m.CounterRowsConsumed,
		m.RowsDropped,
		m.ZeroAdjusted,
		m.AnomaliesFlagged,
		m.JoinedRows,
		m.JoinMisses,
		m.PipelineRunning,
		m.RunDuration,
		m.FetchDuration,
		m.WeatherCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WeatherRowsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "weather_rows_consumed_total",
			Help:      "Raw weather observation rows fetched from the ISD source.",
		}),
		CounterRowsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "counter_rows_consumed_total",
			Help:      "Raw bicycle-counter event rows fetched from the counter source.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "rows_dropped_total",
			Help:      "Malformed raw rows dropped during ingestion, by source.",
		}, []string{"source"}),
		ZeroAdjusted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "zero_adjusted_total",
			Help:      "Counter records whose zero count was replaced by one.",
		}),
		AnomaliesFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "anomalies_flagged_total",
			Help:      "Counter records flagged as anomalous, by flag.",
		}, []string{"flag"}),
		JoinedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "joined_rows_total",
			Help:      "Rows written to the joined analysis table.",
		}),
		JoinMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "join_misses_total",
			Help:      "Counter records whose hour had no weather row.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ride_weather_etl",
			Name:      "pipeline_running",
			Help:      "1 while a batch run is in progress, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ride_weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-clean-join-export run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ride_weather_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Raw source fetch duration in seconds, by source.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ride_weather_etl",
			Name:      "weather_cache_total",
			Help:      "Station-year weather cache lookups, by result.",
		}, []string{"result"}),
	}
}
