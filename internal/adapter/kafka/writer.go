// Package kafka publishes the joined analysis table to a Kafka topic for
// downstream consumers that want rows as a stream rather than a file.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/pedalwatch/ride-weather-etl/internal/config"
	"github.com/pedalwatch/ride-weather-etl/internal/domain"
)

// Writer produces joined records to a Kafka topic.
// It implements pipeline.TableSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteTable serializes and publishes the whole table in a single
// WriteMessages call so the batch either lands or fails as one unit.
func (w *Writer) WriteTable(ctx context.Context, records []domain.JoinedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish joined records: %w", err)
	}
	w.logger.Info("joined table published", "topic", w.writer.Topic, "rows", len(records))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// rowPayload is the wire form of a joined record. Pointers stay pointers so
// missing measurements serialize as JSON null.
type rowPayload struct {
	Location        string   `json:"location"`
	TimestampUTC    string   `json:"timestamp_utc"`
	Count           int      `json:"count"`
	AdjustedCount   int      `json:"adjusted_count"`
	LogCount        float64  `json:"log_count"`
	DayOfWeek       int      `json:"day_of_week"`
	Weekend         bool     `json:"weekend"`
	WasZeroAdjusted bool     `json:"was_zero_adjusted"`
	Anomaly         string   `json:"anomaly"`
	TemperatureC    *float64 `json:"temperature_c"`
	PrecipitationMM *float64 `json:"precipitation_mm"`
	WeatherMatched  bool     `json:"weather_matched"`
}

// serializeToMessage marshals a joined record into a Kafka message keyed by
// location and hour, so per-site ordering is stable under partitioning.
func serializeToMessage(rec domain.JoinedRecord) (kafkago.Message, error) {
	ts := rec.ObservedAt.UTC().Format(time.RFC3339)
	payload := rowPayload{
		Location:        rec.Location,
		TimestampUTC:    ts,
		Count:           rec.Count,
		AdjustedCount:   rec.AdjustedCount,
		LogCount:        rec.LogCount,
		DayOfWeek:       rec.DayOfWeek,
		Weekend:         rec.Weekend,
		WasZeroAdjusted: rec.WasZeroAdjusted,
		Anomaly:         string(rec.Anomaly),
		TemperatureC:    rec.TemperatureC,
		PrecipitationMM: rec.PrecipitationMM,
		WeatherMatched:  rec.WeatherMatched,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize joined record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Location + "|" + ts),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "location", Value: []byte(rec.Location)},
			{Key: "processed_at", Value: []byte(rec.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
