package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is loaded from an optional TOML file and then overridden by
// ASGDB_* environment variables.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Debug       DebugConfig       `toml:"debug"`
	Performance PerformanceConfig `toml:"performance"`
	API         APIConfig         `toml:"api"`
	Events      EventsConfig      `toml:"events"`
	Sync        SyncConfig        `toml:"sync"`
}

type DatabaseConfig struct {
	Driver           string `toml:"driver"`             // ASGDB_DB_DRIVER (default "sqlite")
	Filename         string `toml:"filename"`           // ASGDB_DB_FILENAME (default "players")
	Dir              string `toml:"dir"`                // ASGDB_DB_DIR (default ".")
	URL              string `toml:"url"`                // ASGDB_DATABASE_URL (required for postgres)
	BackupOnShutdown bool   `toml:"backup_on_shutdown"` // ASGDB_BACKUP_ON_SHUTDOWN (default true)
	MaxBackups       int    `toml:"max_backups"`        // ASGDB_MAX_BACKUPS (default 5)
}

type DebugConfig struct {
	Enabled    bool `toml:"enabled"`     // ASGDB_DEBUG
	LogQueries bool `toml:"log_queries"` // ASGDB_LOG_QUERIES
}

type PerformanceConfig struct {
	MaxConnections    int  `toml:"max_connections"`     // ASGDB_MAX_CONNECTIONS (default 10)
	ConnectionTimeout int  `toml:"connection_timeout"`  // ASGDB_CONNECTION_TIMEOUT, milliseconds (default 30000)
	UseConnectionPool bool `toml:"use_connection_pool"` // ASGDB_USE_CONNECTION_POOL (default true)
}

type APIConfig struct {
	HTTPAddr  string `toml:"http_addr"`  // ASGDB_HTTP_ADDR (default ":8080")
	GRPCAddr  string `toml:"grpc_addr"`  // ASGDB_GRPC_ADDR (default ":9090")
	AuthToken string `toml:"auth_token"` // ASGDB_AUTH_TOKEN (empty = auth disabled)
}

type EventsConfig struct {
	NATSURL string `toml:"nats_url"` // ASGDB_NATS_URL (empty = no events)
}

type SyncConfig struct {
	Interval   string `toml:"interval"`    // ASGDB_SYNC_INTERVAL (default "0s" = disabled)
	Dir        string `toml:"dir"`         // ASGDB_SYNC_DIR (enables local exports when set)
	S3Bucket   string `toml:"s3_bucket"`   // ASGDB_SYNC_S3_BUCKET (enables S3 when set)
	S3Endpoint string `toml:"s3_endpoint"` // ASGDB_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	S3Region   string `toml:"s3_region"`   // ASGDB_SYNC_S3_REGION (default "us-east-1")
	S3Key      string `toml:"s3_key"`      // ASGDB_SYNC_S3_KEY (default "asgdb/backup.jsonl")

	Every time.Duration `toml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           "sqlite",
			Filename:         "players",
			Dir:              ".",
			BackupOnShutdown: true,
			MaxBackups:       5,
		},
		Performance: PerformanceConfig{
			MaxConnections:    10,
			ConnectionTimeout: 30000,
			UseConnectionPool: true,
		},
		API: APIConfig{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Sync: SyncConfig{
			Interval: "0s",
			S3Region: "us-east-1",
			S3Key:    "asgdb/backup.jsonl",
		},
	}
}

// Load reads the TOML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	c.Database.Driver = envOrDefault("ASGDB_DB_DRIVER", c.Database.Driver)
	c.Database.Filename = envOrDefault("ASGDB_DB_FILENAME", c.Database.Filename)
	c.Database.Dir = envOrDefault("ASGDB_DB_DIR", c.Database.Dir)
	c.Database.URL = envOrDefault("ASGDB_DATABASE_URL", c.Database.URL)
	c.API.HTTPAddr = envOrDefault("ASGDB_HTTP_ADDR", c.API.HTTPAddr)
	c.API.GRPCAddr = envOrDefault("ASGDB_GRPC_ADDR", c.API.GRPCAddr)
	c.API.AuthToken = envOrDefault("ASGDB_AUTH_TOKEN", c.API.AuthToken)
	c.Events.NATSURL = envOrDefault("ASGDB_NATS_URL", c.Events.NATSURL)
	c.Sync.Interval = envOrDefault("ASGDB_SYNC_INTERVAL", c.Sync.Interval)
	c.Sync.Dir = envOrDefault("ASGDB_SYNC_DIR", c.Sync.Dir)
	c.Sync.S3Bucket = envOrDefault("ASGDB_SYNC_S3_BUCKET", c.Sync.S3Bucket)
	c.Sync.S3Endpoint = envOrDefault("ASGDB_SYNC_S3_ENDPOINT", c.Sync.S3Endpoint)
	c.Sync.S3Region = envOrDefault("ASGDB_SYNC_S3_REGION", c.Sync.S3Region)
	c.Sync.S3Key = envOrDefault("ASGDB_SYNC_S3_KEY", c.Sync.S3Key)

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"ASGDB_BACKUP_ON_SHUTDOWN", &c.Database.BackupOnShutdown},
		{"ASGDB_DEBUG", &c.Debug.Enabled},
		{"ASGDB_LOG_QUERIES", &c.Debug.LogQueries},
		{"ASGDB_USE_CONNECTION_POOL", &c.Performance.UseConnectionPool},
	} {
		v, err := envBool(b.key, *b.dst)
		if err != nil {
			return err
		}
		*b.dst = v
	}

	for _, n := range []struct {
		key string
		dst *int
	}{
		{"ASGDB_MAX_BACKUPS", &c.Database.MaxBackups},
		{"ASGDB_MAX_CONNECTIONS", &c.Performance.MaxConnections},
		{"ASGDB_CONNECTION_TIMEOUT", &c.Performance.ConnectionTimeout},
	} {
		v, err := envInt(n.key, *n.dst)
		if err != nil {
			return err
		}
		*n.dst = v
	}
	return nil
}

// Validate checks field values and derives Sync.Every from Sync.Interval.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database.filename is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for postgres")
		}
	default:
		return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
	}
	if c.Database.MaxBackups < 0 {
		return fmt.Errorf("database.max_backups must not be negative")
	}
	if c.Performance.MaxConnections < 0 {
		return fmt.Errorf("performance.max_connections must not be negative")
	}
	if c.Performance.ConnectionTimeout < 0 {
		return fmt.Errorf("performance.connection_timeout must not be negative")
	}

	if c.Sync.Interval != "" {
		d, err := time.ParseDuration(c.Sync.Interval)
		if err != nil {
			return fmt.Errorf("sync.interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("sync.interval must not be negative")
		}
		c.Sync.Every = d
	}
	return nil
}

// DatabasePath returns the SQLite file path. A filename without an extension
// gets ".db"; ":memory:" is returned unchanged.
func (c *Config) DatabasePath() string {
	name := c.Database.Filename
	if name == ":memory:" {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".db"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Database.Dir, name)
}

// BackupDir is where snapshot backups are written.
func (c *Config) BackupDir() string {
	return filepath.Join(c.Database.Dir, "backups")
}

// BusyTimeout is the configured connection timeout.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Performance.ConnectionTimeout) * time.Millisecond
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
