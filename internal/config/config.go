package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Weather source.
	StationID        string
	Years            []int
	WeatherBaseURL   string
	WeatherCacheSize int

	// Counter source.
	CounterLocations []string
	CounterTimezone  string
	CounterBaseURL   string

	// Cleaning policy.
	TemperatureAcceptFlags   []string
	PrecipitationAcceptFlags []string
	ExtremeValueThreshold    int
	AnomalyRunMinLength      int

	// Output.
	OutputPath     string
	KafkaBrokers   []string
	KafkaEnabled   bool
	KafkaSinkTopic string

	// Service.
	FetchTimeout    time.Duration
	RunInterval     time.Duration // 0 = single batch run
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	years, err := parseYears(envOrDefault("YEARS", "2015"))
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseNonNegativeDuration("RUN_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}

	threshold, err := parsePositiveInt("EXTREME_VALUE_THRESHOLD", 500)
	if err != nil {
		return nil, err
	}
	runMinLength, err := parsePositiveInt("ANOMALY_RUN_MIN_LENGTH", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("WEATHER_CACHE_SIZE", 8)
	if err != nil {
		return nil, err
	}

	kafkaBrokers := splitList(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(kafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		StationID:        envOrDefault("STATION_ID", "716270-99999"),
		Years:            years,
		WeatherBaseURL:   envOrDefault("WEATHER_BASE_URL", "https://www.ncei.noaa.gov/data/global-hourly/access"),
		WeatherCacheSize: cacheSize,

		CounterLocations: splitList(envOrDefault("COUNTER_LOCATIONS", "berri1,maisonneuve_2,rachel1")),
		CounterTimezone:  envOrDefault("COUNTER_TIMEZONE", "America/Montreal"),
		CounterBaseURL:   envOrDefault("COUNTER_BASE_URL", "http://localhost:8081/api"),

		TemperatureAcceptFlags:   splitList(envOrDefault("TEMP_ACCEPT_FLAGS", "1,5,A")),
		PrecipitationAcceptFlags: splitList(envOrDefault("PRECIP_ACCEPT_FLAGS", "1,5")),
		ExtremeValueThreshold:    threshold,
		AnomalyRunMinLength:      runMinLength,

		OutputPath:     envOrDefault("OUTPUT_PATH", "data/joined_ride_weather.csv"),
		KafkaBrokers:   kafkaBrokers,
		KafkaEnabled:   kafkaEnabled,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "joined-ride-weather"),

		FetchTimeout:    fetchTimeout,
		RunInterval:     runInterval,
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.StationID == "" {
		return nil, errors.New("STATION_ID is required")
	}
	if len(cfg.CounterLocations) == 0 {
		return nil, errors.New("COUNTER_LOCATIONS is required")
	}
	if _, err := time.LoadLocation(cfg.CounterTimezone); err != nil {
		return nil, fmt.Errorf("invalid COUNTER_TIMEZONE: %w", err)
	}
	if len(cfg.TemperatureAcceptFlags) == 0 {
		return nil, errors.New("TEMP_ACCEPT_FLAGS is required")
	}
	if len(cfg.PrecipitationAcceptFlags) == 0 {
		return nil, errors.New("PRECIP_ACCEPT_FLAGS is required")
	}
	if cfg.AnomalyRunMinLength < 2 {
		return nil, errors.New("ANOMALY_RUN_MIN_LENGTH must be at least 2")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OUTPUT_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is not set")
	}

	return cfg, nil
}

// CounterLocation resolves the configured civil time zone. Load has already
// validated the name, so failures here indicate a tzdata problem.
func (c *Config) CounterLocation() (*time.Location, error) {
	return time.LoadLocation(c.CounterTimezone)
}

// parseYears accepts a comma list ("2014,2015"), a range ("2014-2016"), or a
// mix of both, and returns the distinct years in ascending order.
func parseYears(value string) ([]int, error) {
	seen := make(map[int]bool)
	var years []int

	add := func(y int) {
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}

	for _, part := range splitList(value) {
		if from, to, ok := strings.Cut(part, "-"); ok {
			lo, err1 := strconv.Atoi(strings.TrimSpace(from))
			hi, err2 := strconv.Atoi(strings.TrimSpace(to))
			if err1 != nil || err2 != nil || lo > hi {
				return nil, fmt.Errorf("invalid YEARS range %q", part)
			}
			for y := lo; y <= hi; y++ {
				add(y)
			}
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid YEARS value %q", part)
		}
		add(y)
	}

	if len(years) == 0 {
		return nil, errors.New("YEARS is required")
	}
	for _, y := range years {
		if y < 1900 || y > 2100 {
			return nil, fmt.Errorf("YEARS value %d out of range", y)
		}
	}
	sort.Ints(years)
	return years, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
