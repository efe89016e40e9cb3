package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// RegionPlaceholder is replaced by the region code in CacheFilename.
const RegionPlaceholder = "{region}"

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceURL        string
	DataDir          string
	CacheFilename    string
	HTTPTimeout      time.Duration
	LatestMaxAge     time.Duration
	Regions          []string
	MergeConcurrency int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka export configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("HTTP_TIMEOUT", "30s"))
	if err != nil || httpTimeout <= 0 {
		return nil, errors.New("invalid HTTP_TIMEOUT")
	}

	latestMaxAge, err := time.ParseDuration(sharedcfg.EnvOrDefault("LATEST_MAX_AGE", "0s"))
	if err != nil || latestMaxAge < 0 {
		return nil, errors.New("invalid LATEST_MAX_AGE")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	concurrency, err := strconv.Atoi(sharedcfg.EnvOrDefault("MERGE_CONCURRENCY", "1"))
	if err != nil || concurrency < 1 || concurrency > 14 {
		return nil, errors.New("invalid MERGE_CONCURRENCY: want 1-14")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SourceURL:        sharedcfg.EnvOrDefault("SOURCE_URL", "https://ehw.fit.vutbr.cz/izv/"),
		DataDir:          sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		CacheFilename:    sharedcfg.EnvOrDefault("CACHE_FILENAME", "data_"+RegionPlaceholder+".arrow.gz"),
		HTTPTimeout:      httpTimeout,
		LatestMaxAge:     latestMaxAge,
		Regions:          parseRegions(os.Getenv("REGIONS")),
		MergeConcurrency: concurrency,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "crash-records"),
		BatchSize:    batchSize,
	}

	if cfg.SourceURL == "" {
		return nil, errors.New("SOURCE_URL is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if !strings.Contains(cfg.CacheFilename, RegionPlaceholder) {
		return nil, errors.New("CACHE_FILENAME must contain " + RegionPlaceholder)
	}
	for _, code := range cfg.Regions {
		if _, err := domain.LookupRegion(code); err != nil {
			return nil, fmt.Errorf("invalid REGIONS: %w", err)
		}
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

// CachePath returns the file name of the disk cache blob for a region.
func (c *Config) CachePath(region string) string {
	return strings.ReplaceAll(c.CacheFilename, RegionPlaceholder, region)
}

// parseRegions splits a comma-separated region list; empty means all regions.
func parseRegions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
