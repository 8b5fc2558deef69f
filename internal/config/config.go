// Package config loads the service configuration: built-in defaults, an
// optional YAML file, and OPEXEC_* environment overrides, in that order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tracelab/opexec/pkg/execstore"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Details      DetailsConfig      `mapstructure:"details"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Sweeper      SweeperConfig      `mapstructure:"sweeper"`
	Availability AvailabilityConfig `mapstructure:"availability"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StoreConfig struct {
	// Path is the local SQLite database file.
	Path string `mapstructure:"path"`

	// URL and AuthToken select a remote libsql/Turso database instead.
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

type DetailsConfig struct {
	// Backend selects where detail documents live: "fs" or "s3".
	Backend string   `mapstructure:"backend"`
	Root    string   `mapstructure:"root"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Profile         string `mapstructure:"profile"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type EngineConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

type SweeperConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MarkInterval   time.Duration `mapstructure:"mark_interval"`
	PurgeInterval  time.Duration `mapstructure:"purge_interval"`
	PurgePerSecond float64       `mapstructure:"purge_per_second"`
}

type AvailabilityConfig struct {
	RecordDefault  int `mapstructure:"record_default"`
	SummaryDefault int `mapstructure:"summary_default"`
	DetailsDefault int `mapstructure:"details_default"`
	RecordMax      int `mapstructure:"record_max"`
	SummaryMax     int `mapstructure:"summary_max"`
	DetailsMax     int `mapstructure:"details_max"`
}

// Engine converts to the store-level clamping config.
func (c AvailabilityConfig) Engine() execstore.AvailabilityConfig {
	return execstore.AvailabilityConfig{
		RecordDefault:  c.RecordDefault,
		SummaryDefault: c.SummaryDefault,
		DetailsDefault: c.DetailsDefault,
		RecordMax:      c.RecordMax,
		SummaryMax:     c.SummaryMax,
		DetailsMax:     c.DetailsMax,
	}
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("store.path", "data/executions.db")

	v.SetDefault("details.backend", "fs")
	v.SetDefault("details.root", "data/details")

	v.SetDefault("engine.workers", 2)
	v.SetDefault("engine.queue_depth", 64)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.mark_interval", "1m")
	v.SetDefault("sweeper.purge_interval", "5m")
	v.SetDefault("sweeper.purge_per_second", 50.0)

	v.SetDefault("availability.record_default", execstore.DefaultRecordTime)
	v.SetDefault("availability.summary_default", execstore.DefaultSummaryTime)
	v.SetDefault("availability.details_default", execstore.DefaultDetailsTime)
	v.SetDefault("availability.record_max", execstore.DefaultRecordTime)
	v.SetDefault("availability.summary_max", execstore.DefaultSummaryTime)
	v.SetDefault("availability.details_max", execstore.DefaultDetailsTime)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", true)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply. Environment overrides use the
// OPEXEC_ prefix with underscores, e.g. OPEXEC_SERVER_PORT=9090.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OPEXEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Details.Backend {
	case "fs", "s3":
	default:
		return fmt.Errorf("details.backend must be fs or s3, got %q", c.Details.Backend)
	}
	if c.Details.Backend == "s3" && c.Details.S3.Bucket == "" {
		return fmt.Errorf("details.s3.bucket is required for the s3 backend")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
