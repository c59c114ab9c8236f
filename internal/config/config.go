package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	App     AppConfig     `mapstructure:"app"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Offline OfflineConfig `mapstructure:"offline"`
	History HistoryConfig `mapstructure:"history"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowOrigins enables CORS for the listed origins.
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// AppConfig describes where the app shell lives.
type AppConfig struct {
	// Origin is the scheme+host the app is served from. Requests for any
	// other host are treated as cross-origin by the cache worker.
	Origin    string `mapstructure:"origin"`
	StaticDir string `mapstructure:"static_dir"`
	// OriginURL points at a remote origin. Empty means static_dir is served
	// in-process.
	OriginURL string `mapstructure:"origin_url"`
}

// CatalogConfig tunes the source loader HTTP client.
type CatalogConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	Retries        int `mapstructure:"retries"`
}

// StorageConfig selects the key/value backend for overrides, plans and history.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Dir    string `mapstructure:"dir"`
}

// RedisConfig holds Redis connection details for the redis storage driver.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
	Prefix   string `mapstructure:"prefix"`
}

// OfflineConfig configures the cache worker.
type OfflineConfig struct {
	CachePrefix   string   `mapstructure:"cache_prefix"`
	Version       string   `mapstructure:"version"`
	Manifest      []string `mapstructure:"manifest"`
	DiscoverShell bool     `mapstructure:"discover_shell"`
	CacheDriver   string   `mapstructure:"cache_driver"`
}

// HistoryConfig controls pruning of archived plans.
type HistoryConfig struct {
	RetentionMonths int `mapstructure:"retention_months"`
}

// MetricsConfig controls retention of fetch metrics.
type MetricsConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// LogConfig holds the logrus level name.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads configuration from an optional YAML file, a .env file and
// WHATS_COOKING_* environment variables, in increasing precedence.
// An empty path looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("WHATS_COOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config.yaml found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, file, sqlite, redis", c.Storage.Driver)
	}
	switch c.Offline.CacheDriver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("offline.cache_driver %q is not one of memory, sqlite", c.Offline.CacheDriver)
	}
	if c.Offline.Version == "" {
		return fmt.Errorf("offline.version must not be empty")
	}
	if c.History.RetentionMonths <= 0 {
		return fmt.Errorf("history.retention_months must be positive, got %d", c.History.RetentionMonths)
	}
	return nil
}

// ApplyLogLevel configures logrus from the config.
func (c *Config) ApplyLogLevel() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, keeping %s", c.Log.Level, log.GetLevel())
		return
	}
	log.SetLevel(level)
}

// DefaultManifest is the app shell precached on install. "/" stands in for
// index.html, which http.FileServer redirects.
var DefaultManifest = []string{
	"/",
	"/css/styles.css",
	"/js/app.js",
	"/manifest.json",
	"/data/breakfast-catalog.json",
	"/data/mains-catalog.json",
	"/data/sides-catalog.json",
	"/data/accompaniments-catalog.json",
	"/assets/icons/icon-192.png",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("app.origin", "http://localhost:8080")
	v.SetDefault("app.static_dir", "./web")
	v.SetDefault("app.origin_url", "")

	v.SetDefault("catalog.timeout_seconds", 10)
	v.SetDefault("catalog.retries", 2)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/whats-cooking.db")
	v.SetDefault("storage.dir", "./data/store")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.prefix", "whats-cooking:")

	v.SetDefault("offline.cache_prefix", "whats-cooking")
	v.SetDefault("offline.version", "1.0.0")
	v.SetDefault("offline.manifest", DefaultManifest)
	v.SetDefault("offline.discover_shell", true)
	v.SetDefault("offline.cache_driver", "sqlite")

	v.SetDefault("history.retention_months", 3)
	v.SetDefault("metrics.retention_days", 30)
	v.SetDefault("log.level", "info")
}
