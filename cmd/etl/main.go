package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pedalwatch/ride-weather-etl/internal/adapter/counters"
	"github.com/pedalwatch/ride-weather-etl/internal/adapter/csvexport"
	httpadapter "github.com/pedalwatch/ride-weather-etl/internal/adapter/http"
	"github.com/pedalwatch/ride-weather-etl/internal/adapter/isd"
	kafkaadapter "github.com/pedalwatch/ride-weather-etl/internal/adapter/kafka"
	"github.com/pedalwatch/ride-weather-etl/internal/config"
	"github.com/pedalwatch/ride-weather-etl/internal/domain"
	"github.com/pedalwatch/ride-weather-etl/internal/observability"
	"github.com/pedalwatch/ride-weather-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	civilZone, err := cfg.CounterLocation()
	if err != nil {
		logger.Error("failed to resolve counter timezone", "error", err)
		os.Exit(1)
	}

	weatherClient := isd.NewClient(cfg.WeatherBaseURL, cfg.FetchTimeout, logger, metrics)
	weatherSource := isd.NewCachedSource(weatherClient, cfg.WeatherCacheSize, metrics)
	counterSource := counters.NewClient(cfg.CounterBaseURL, civilZone, cfg.FetchTimeout, logger, metrics)

	sinks := []pipeline.TableSink{csvexport.NewWriter(cfg.OutputPath, logger)}
	var kafkaSink *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaSink = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, kafkaSink)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka sink disabled")
	}

	opts := pipeline.Options{
		Station:   cfg.StationID,
		Years:     cfg.Years,
		Locations: cfg.CounterLocations,
		FlagPolicy: domain.FlagPolicy{
			TemperatureAccept:   domain.NewFlagSet(cfg.TemperatureAcceptFlags...),
			PrecipitationAccept: domain.NewFlagSet(cfg.PrecipitationAcceptFlags...),
		},
		Cleaner: domain.CleanerConfig{
			ExtremeValueThreshold: cfg.ExtremeValueThreshold,
			RunMinLength:          cfg.AnomalyRunMinLength,
		},
	}
	p := pipeline.New(weatherSource, counterSource, sinks, logger, metrics, opts)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := runBatches(ctx, p, cfg.RunInterval, logger)

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// runBatches executes the pipeline once, then keeps re-running it every
// interval. A zero interval means single-batch mode: run once and return.
func runBatches(ctx context.Context, p *pipeline.Pipeline, interval time.Duration, logger *slog.Logger) error {
	if _, err := p.Run(ctx); err != nil {
		return err
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Run(ctx); err != nil {
				// Scheduled mode keeps serving the last good table on a
				// failed refresh.
				logger.Error("scheduled run failed", "error", err)
			}
		}
	}
}
