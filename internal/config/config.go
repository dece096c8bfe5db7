package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file name.
const FileName = "dedupe.yaml"

// EnvPrefix prefixes environment overrides, e.g. DEDUPE_STORE_DRIVER.
const EnvPrefix = "DEDUPE"

// Store drivers.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
)

// Detection strategies.
const (
	StrategyAnchor     = "anchor"
	StrategyTransitive = "transitive"
)

// Config represents the top-level dedupe.yaml configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Git    GitConfig    `yaml:"git" mapstructure:"git"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Audit  AuditConfig  `yaml:"audit" mapstructure:"audit"`
}

// StoreConfig selects the transaction store backend.
type StoreConfig struct {
	Driver  string        `yaml:"driver" mapstructure:"driver"`
	Path    string        `yaml:"path,omitempty" mapstructure:"path"` // csv file or sqlite database, relative to the project
	DSN     string        `yaml:"dsn,omitempty" mapstructure:"dsn"`   // postgres
	URL     string        `yaml:"url,omitempty" mapstructure:"url"`   // remote entity API
	Token   string        `yaml:"token,omitempty" mapstructure:"token"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ScanConfig controls duplicate detection.
type ScanConfig struct {
	Limit           int           `yaml:"limit" mapstructure:"limit"`
	AmountTolerance string        `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	Window          time.Duration `yaml:"window" mapstructure:"window"`
	Strategy        string        `yaml:"strategy" mapstructure:"strategy"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // "text" or "json"
}

// GitConfig controls git integration for file-backed projects.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" mapstructure:"auto_commit"`
	AuthorName  string `yaml:"author_name" mapstructure:"author_name"`
	AuthorEmail string `yaml:"author_email" mapstructure:"author_email"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Token          string   `yaml:"token,omitempty" mapstructure:"token"` // bearer token required by the API when set
}

// AuditConfig controls the resolution audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Actor   string `yaml:"actor" mapstructure:"actor"`
}

// Tolerance returns the parsed amount tolerance.
func (s ScanConfig) Tolerance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s.AmountTolerance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount_tolerance %q: %w", s.AmountTolerance, err)
	}
	return d, nil
}

// Validate checks option values that cannot be caught by decoding.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverCSV, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for driver %q", c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	case DriverRemote:
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Scan.Strategy {
	case StrategyAnchor, StrategyTransitive:
	default:
		return fmt.Errorf("unknown scan strategy %q", c.Scan.Strategy)
	}

	tol, err := c.Scan.Tolerance()
	if err != nil {
		return err
	}
	if tol.IsNegative() {
		return fmt.Errorf("scan.amount_tolerance must not be negative")
	}
	if c.Scan.Window <= 0 {
		return fmt.Errorf("scan.window must be positive")
	}
	if c.Scan.Limit <= 0 {
		return fmt.Errorf("scan.limit must be positive")
	}
	return nil
}

// Load reads a dedupe.yaml file from disk. Values missing from the file fall
// back to Default, and DEDUPE_* environment variables override both.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:  DriverCSV,
			Path:    "transactions.csv",
			Timeout: 30 * time.Second,
		},
		Scan: ScanConfig{
			Limit:           5000,
			AmountTolerance: "0.01",
			Window:          24 * time.Hour,
			Strategy:        StrategyAnchor,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Dedupe",
			AuthorEmail: "dedupe@cleared.dev",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Audit: AuditConfig{
			Enabled: true,
			Actor:   "cli",
		},
	}
}

// newViper returns a viper instance seeded with Default and env overrides.
// Every key needs a default for AutomaticEnv to reach it during Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.url", d.Store.URL)
	v.SetDefault("store.token", d.Store.Token)
	v.SetDefault("store.timeout", d.Store.Timeout)
	v.SetDefault("scan.limit", d.Scan.Limit)
	v.SetDefault("scan.amount_tolerance", d.Scan.AmountTolerance)
	v.SetDefault("scan.window", d.Scan.Window)
	v.SetDefault("scan.strategy", d.Scan.Strategy)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("git.auto_commit", d.Git.AutoCommit)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.token", d.Server.Token)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.actor", d.Audit.Actor)
	return v
}
