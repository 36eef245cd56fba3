// Package config loads tool configuration from a YAML file plus
// environment variables for secrets.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type APIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	MinCoveragePct   float64       `mapstructure:"min_coverage_pct"`
	MaxCloudCoverPct float64       `mapstructure:"max_cloud_cover_pct"`
	PaginationDelay  time.Duration `mapstructure:"pagination_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RetryMaxBackoff  time.Duration `mapstructure:"retry_max_backoff"`
	APIKey           string        `mapstructure:"-"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	AccessKey string `mapstructure:"-"`
	SecretKey string `mapstructure:"-"`
}

type SupabaseConfig struct {
	URL    string `mapstructure:"url"`
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"-"`
}

type DownloadsConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent_downloads"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Backend       string        `mapstructure:"backend"` // fs, s3 or supabase
	LocalDir      string        `mapstructure:"local_dir"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	GeoJSONDir string `mapstructure:"geojson_dir"`
}

type AOIServerConfig struct {
	Port int `mapstructure:"port"`
}

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	S3        S3Config        `mapstructure:"s3"`
	Supabase  SupabaseConfig  `mapstructure:"supabase"`
	Downloads DownloadsConfig `mapstructure:"downloads"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	AOIServer AOIServerConfig `mapstructure:"aoi_server"`
}

// Load reads config.yaml from path (or the defaults when the file is
// absent) and overlays secrets from the environment. Every returned
// Config has been validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
	}

	setDefaults(v)

	// FLOWZERO_DATABASE_DSN overrides database.dsn and so on. Viper
	// only consults the environment for keys it already knows, so
	// every key gets a default above.
	v.SetEnvPrefix("FLOWZERO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.API.APIKey = os.Getenv("PL_API_KEY")
	cfg.S3.AccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.S3.SecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.Supabase.Key = os.Getenv("SUPABASE_KEY")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.planet.com")
	v.SetDefault("api.min_coverage_pct", 95.0)
	v.SetDefault("api.max_cloud_cover_pct", 5.0)
	v.SetDefault("api.pagination_delay", "1s")
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("api.retry_attempts", 3)
	v.SetDefault("api.retry_backoff", "2s")
	v.SetDefault("api.retry_max_backoff", "10s")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.bucket", "")

	v.SetDefault("downloads.max_concurrent_downloads", 10)
	v.SetDefault("downloads.timeout", "10m")
	v.SetDefault("downloads.backend", "fs")
	v.SetDefault("downloads.local_dir", "downloads")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "orders.db")

	v.SetDefault("storage.geojson_dir", "geojsons")
	v.SetDefault("aoi_server.port", 8080)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver %q (want sqlite or postgres)", c.Database.Driver)
	}
	switch c.Downloads.Backend {
	case "fs", "s3", "supabase":
	default:
		return fmt.Errorf("invalid downloads backend %q (want fs, s3 or supabase)", c.Downloads.Backend)
	}
	if c.Downloads.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent_downloads must be at least 1, got %d", c.Downloads.MaxConcurrent)
	}
	if c.API.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1, got %d", c.API.RetryAttempts)
	}
	if c.API.MinCoveragePct < 0 || c.API.MinCoveragePct > 100 {
		return fmt.Errorf("min_coverage_pct must be within [0, 100], got %g", c.API.MinCoveragePct)
	}
	if c.API.MaxCloudCoverPct < 0 || c.API.MaxCloudCoverPct > 100 {
		return fmt.Errorf("max_cloud_cover_pct must be within [0, 100], got %g", c.API.MaxCloudCoverPct)
	}
	return nil
}
