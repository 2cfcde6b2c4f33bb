package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Unsplash UnsplashConfig `mapstructure:"unsplash"`
	History  HistoryConfig  `mapstructure:"history"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// CacheConfig controls where photos live on disk and how large the catalog may grow.
type CacheConfig struct {
	Root       string `mapstructure:"root"`        // photos are stored under <root>/photos
	MaxItems   int    `mapstructure:"max_items"`   // catalog bound
	BatchSize  int    `mapstructure:"batch_size"`  // candidates requested per refresh
	SampleSize int    `mapstructure:"sample_size"` // items returned by fallback / cache-full refreshes
}

// Dir returns the photo directory, <root>/photos.
func (c CacheConfig) Dir() string {
	return filepath.Join(c.Root, "photos")
}

type UnsplashConfig struct {
	AccessKey        string        `mapstructure:"access_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Query            string        `mapstructure:"query"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxDownloadBytes int64         `mapstructure:"max_download_bytes"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// HistoryConfig configures the optional refresh-run history database.
type HistoryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	DSNValue        string        `mapstructure:"dsn"`    // postgres DSN
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c HistoryConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.DSNValue
	}
	return c.Path
}

// MirrorConfig configures the optional S3-compatible copy of downloaded photos.
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; empty auto-detects
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	PublicURL string `mapstructure:"public_url"`
}

// Load reads configuration from an optional YAML file, .env and the environment.
// An empty configPath searches ./configs and the working directory for config.yaml.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and commonly overridden values get their conventional names
	v.BindEnv("unsplash.access_key", "UNSPLASH_ACCESS_KEY")
	v.BindEnv("unsplash.query", "UNSPLASH_QUERY")
	v.BindEnv("cache.root", "PHOTOCACHE_ROOT")
	v.BindEnv("history.dsn", "DATABASE_DSN")
	v.BindEnv("mirror.endpoint", "S3_ENDPOINT")
	v.BindEnv("mirror.access_key", "S3_ACCESS_KEY")
	v.BindEnv("mirror.secret_key", "S3_SECRET_KEY")
	v.BindEnv("mirror.bucket", "S3_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Cache.Root == "" {
		cfg.Cache.Root = defaultCacheRoot()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("cache.root", "")
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.batch_size", 10)
	v.SetDefault("cache.sample_size", 10)
	v.SetDefault("unsplash.base_url", "https://api.unsplash.com")
	v.SetDefault("unsplash.query", "nature")
	v.SetDefault("unsplash.timeout", 30*time.Second)
	v.SetDefault("unsplash.max_download_bytes", int64(20<<20))
	v.SetDefault("unsplash.user_agent", "photocache/1.0")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.path", "./data/history.db")
	v.SetDefault("history.max_idle_conns", 2)
	v.SetDefault("history.max_open_conns", 4)
	v.SetDefault("history.conn_max_lifetime", time.Hour)
	v.SetDefault("history.auto_migrate", true)
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.use_ssl", true)
	v.SetDefault("mirror.prefix", "photos")
}

// Validate checks ranges and required fields of enabled sections.
func (c *Config) Validate() error {
	if c.Cache.MaxItems <= 0 {
		return fmt.Errorf("cache.max_items must be positive, got %d", c.Cache.MaxItems)
	}
	if c.Cache.BatchSize <= 0 {
		return fmt.Errorf("cache.batch_size must be positive, got %d", c.Cache.BatchSize)
	}
	if c.Cache.SampleSize <= 0 {
		return fmt.Errorf("cache.sample_size must be positive, got %d", c.Cache.SampleSize)
	}
	if c.Unsplash.BaseURL == "" {
		return fmt.Errorf("unsplash.base_url is required")
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("history.driver: unknown driver %q", c.History.Driver)
		}
		if c.History.DSN() == "" {
			return fmt.Errorf("history: no connection configured for driver %q", c.History.Driver)
		}
	}
	if c.Mirror.Enabled && (c.Mirror.Endpoint == "" || c.Mirror.Bucket == "") {
		return fmt.Errorf("mirror: endpoint and bucket are required when enabled")
	}
	return nil
}

// defaultCacheRoot mirrors the per-user cache directory convention of desktop apps.
func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "photocache")
	}
	return filepath.Join(os.TempDir(), "photocache")
}
