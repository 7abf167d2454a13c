// Package config loads service configuration from environment variables,
// with an optional .env file for local development. Missing required values
// fail startup immediately.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required"`

	Ingest      IngestConfig
	Correlation CorrelationConfig
	Kafka       KafkaConfig
}

// IngestConfig controls the scheduled fetch cycles and the source adapters.
type IngestConfig struct {
	DisasterInterval time.Duration `envconfig:"INGEST_DISASTER_INTERVAL" default:"1h"`
	AQIInterval      time.Duration `envconfig:"INGEST_AQI_INTERVAL" default:"1h"`

	OnStart       bool          `envconfig:"INGEST_ON_START" default:"true"`
	Lookback      time.Duration `envconfig:"INGEST_LOOKBACK" default:"24h"`
	CityCacheSize int           `envconfig:"CITY_CACHE_SIZE" default:"1000"`

	FIRMSAPIKey       string `envconfig:"FIRMS_API_KEY"`
	OpenAQAPIKey      string `envconfig:"OPENAQ_API_KEY"`
	OpenAQLimit       int    `envconfig:"OPENAQ_LIMIT" default:"50"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY"`

	// Semicolon-separated "name:lat:lon" triples. Empty means the built-in
	// city list.
	OpenWeatherCities string `envconfig:"OPENWEATHER_CITIES"`
}

// CorrelationConfig carries the correlation engine defaults; requests may
// override radius and windows per call.
type CorrelationConfig struct {
	RadiusKm           float64 `envconfig:"CORRELATION_RADIUS_KM" default:"100"`
	PreWindowDays      int     `envconfig:"CORRELATION_PRE_DAYS" default:"7"`
	PostWindowDays     int     `envconfig:"CORRELATION_POST_DAYS" default:"7"`
	StrictCityGrouping bool    `envconfig:"CORRELATION_STRICT_CITY_GROUPING" default:"false"`
}

// KafkaConfig configures the optional upsert change feed. Disabled unless
// brokers are set and Enabled is true.
type KafkaConfig struct {
	Enabled bool   `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string `envconfig:"KAFKA_TOPIC" default:"hazard-aqi-changes"`
}

// Load reads configuration from the environment, consulting a .env file if
// one exists, then validates the result.
func Load() (*Config, error) {
	// Best effort: absence of a .env file is the normal production case.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Ingest.DisasterInterval <= 0 {
		return nil, fmt.Errorf("INGEST_DISASTER_INTERVAL must be positive")
	}
	if cfg.Ingest.AQIInterval <= 0 {
		return nil, fmt.Errorf("INGEST_AQI_INTERVAL must be positive")
	}
	if cfg.Correlation.RadiusKm <= 0 {
		return nil, fmt.Errorf("CORRELATION_RADIUS_KM must be positive")
	}
	if cfg.Kafka.Enabled && len(cfg.BrokerList()) == 0 {
		return nil, fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	return &cfg, nil
}

// BrokerList splits the comma-separated broker string.
func (c *Config) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// CityTargets parses the OPENWEATHER_CITIES triples. Malformed entries are
// an error rather than silently skipped.
func (c *IngestConfig) CityTargets() ([]CityTarget, error) {
	if strings.TrimSpace(c.OpenWeatherCities) == "" {
		return nil, nil
	}
	var out []CityTarget
	for _, part := range strings.Split(c.OpenWeatherCities, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed city target %q: want name:lat:lon", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed city target %q: %w", part, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed city target %q: %w", part, err)
		}
		out = append(out, CityTarget{Name: strings.TrimSpace(fields[0]), Lat: lat, Lon: lon})
	}
	return out, nil
}

// CityTarget is one configured OpenWeather polling coordinate.
type CityTarget struct {
	Name string
	Lat  float64
	Lon  float64
}
