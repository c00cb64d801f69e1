// Package config loads atlas configuration from file and environment and
// initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Ingest  IngestConfig  `yaml:"ingest" mapstructure:"ingest"`
	Routing RoutingConfig `yaml:"routing" mapstructure:"routing"`
	Travel  TravelConfig  `yaml:"travel" mapstructure:"travel"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// IngestConfig configures the offline ingestion pipeline.
type IngestConfig struct {
	HexResolution  int     `yaml:"hex_resolution" mapstructure:"hex_resolution"`
	BatchSize      int     `yaml:"batch_size" mapstructure:"batch_size"`
	HexTypeCap     int     `yaml:"hex_type_cap" mapstructure:"hex_type_cap"`
	SegmentsPath   string  `yaml:"segments_path" mapstructure:"segments_path"`
	BuildingsPath  string  `yaml:"buildings_path" mapstructure:"buildings_path"`
	PlacesPath     string  `yaml:"places_path" mapstructure:"places_path"`
	LandShapefile  string  `yaml:"land_shapefile" mapstructure:"land_shapefile"`
	HubCloseWeight float64 `yaml:"hub_close_weight" mapstructure:"hub_close_weight"`
	HubSizeWeight  float64 `yaml:"hub_size_weight" mapstructure:"hub_size_weight"`
}

// RoutingConfig configures the runtime graph cache and path engine.
type RoutingConfig struct {
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	HealthPenaltyK float64       `yaml:"health_penalty_k" mapstructure:"health_penalty_k"`
}

// TravelConfig configures convoy travel-time computation.
type TravelConfig struct {
	SpeedMps          float64 `yaml:"speed_mps" mapstructure:"speed_mps"`
	MinSeconds        float64 `yaml:"min_seconds" mapstructure:"min_seconds"`
	MaxSeconds        float64 `yaml:"max_seconds" mapstructure:"max_seconds"`
	FallbackInflation float64 `yaml:"fallback_inflation" mapstructure:"fallback_inflation"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Pathless keys get empty defaults so AutomaticEnv can
	// still bind them through Unmarshal.
	v.SetDefault("store.database_url", "")
	v.SetDefault("ingest.segments_path", "")
	v.SetDefault("ingest.buildings_path", "")
	v.SetDefault("ingest.places_path", "")
	v.SetDefault("ingest.land_shapefile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ingest.hex_resolution", 7)
	v.SetDefault("ingest.batch_size", 1000)
	v.SetDefault("ingest.hex_type_cap", 5)
	v.SetDefault("ingest.hub_close_weight", 0.7)
	v.SetDefault("ingest.hub_size_weight", 0.3)
	v.SetDefault("routing.cache_ttl", "5m")
	v.SetDefault("routing.health_penalty_k", 1.5)
	v.SetDefault("travel.speed_mps", 12.5)
	v.SetDefault("travel.min_seconds", 30)
	v.SetDefault("travel.max_seconds", 1800)
	v.SetDefault("travel.fallback_inflation", 1.3)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
