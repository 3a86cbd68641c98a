package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Event catalog ingestion.
	CatalogURL     string
	CatalogTimeout time.Duration
	EventCRS       string // proj4 definition of the catalog coordinates

	// Boundary dataset.
	BoundaryPath      string
	BoundaryFormat    string // "shapefile" or "geojson"; inferred from the extension when unset
	BoundaryIDField   string
	BoundaryNameField string
	BoundaryAreaField string
	RegionCRS         string // proj4 override; empty means use the dataset's own reference

	// Export.
	OutputDir       string
	ExportShapefile bool

	// Pipeline.
	RunInterval  time.Duration // 0 means run once and exit
	FetchRetries int

	// Optional Kafka sink for per-region counts.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	catalogTimeout, err := parseDuration("CATALOG_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	if runInterval < 0 {
		return nil, errors.New("RUN_INTERVAL must not be negative")
	}

	fetchRetries, err := parseInt("FETCH_RETRIES", 5)
	if err != nil {
		return nil, err
	}
	if fetchRetries < 0 {
		return nil, errors.New("FETCH_RETRIES must not be negative")
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		CatalogURL:     envOrDefault("CATALOG_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_month.csv"),
		CatalogTimeout: catalogTimeout,
		EventCRS:       envOrDefault("EVENT_CRS", "+proj=longlat +datum=WGS84 +no_defs"),

		BoundaryPath:      os.Getenv("BOUNDARY_PATH"),
		BoundaryFormat:    strings.ToLower(os.Getenv("BOUNDARY_FORMAT")),
		BoundaryIDField:   envOrDefault("BOUNDARY_ID_FIELD", "GEOID"),
		BoundaryNameField: envOrDefault("BOUNDARY_NAME_FIELD", "NAME"),
		BoundaryAreaField: envOrDefault("BOUNDARY_AREA_FIELD", ""),
		RegionCRS:         os.Getenv("REGION_CRS"),

		OutputDir:       envOrDefault("OUTPUT_DIR", "out"),
		ExportShapefile: envOrDefault("EXPORT_SHAPEFILE", "true") == "true",

		RunInterval:  runInterval,
		FetchRetries: fetchRetries,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "region-event-counts"),
		KafkaEnabled:   kafkaEnabled,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.CatalogURL == "" {
		return nil, errors.New("CATALOG_URL is required")
	}
	if cfg.BoundaryPath == "" {
		return nil, errors.New("BOUNDARY_PATH is required")
	}
	if cfg.BoundaryIDField == "" {
		return nil, errors.New("BOUNDARY_ID_FIELD is required")
	}
	switch cfg.BoundaryFormat {
	case "", "shapefile", "geojson":
	default:
		return nil, fmt.Errorf("unknown BOUNDARY_FORMAT %q", cfg.BoundaryFormat)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
