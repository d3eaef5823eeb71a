// Package config loads linkshelf settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Auth     AuthConfig     `yaml:"auth"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Logging  LoggingConfig  `yaml:"logging"`
	Backup   BackupConfig   `yaml:"backup"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// OriginPatterns lists extra hosts allowed to open the websocket from
	// a browser. Same-origin requests are always allowed.
	OriginPatterns []string `yaml:"origin_patterns"`
}

type DatabaseConfig struct {
	Path         string        `yaml:"path"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"-"`

	BusyTimeoutRaw string `yaml:"busy_timeout"`
}

// SessionConfig controls session lifetime. A zero TTL keeps sessions until
// logout or restart.
type SessionConfig struct {
	TTL           time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`
	SecureCookie  bool          `yaml:"secure_cookie"`

	TTLRaw           string `yaml:"ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

type AuthConfig struct {
	// HashScheme is "plain" (the stored value is compared to what the
	// client sends) or "bcrypt".
	HashScheme        string `yaml:"hash_scheme"`
	AllowRegistration bool   `yaml:"allow_registration"`
}

type RefreshConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"-"`

	IntervalRaw string `yaml:"interval"`
}

// BackupConfig points the admin backup commands at S3-compatible storage.
// Backups are disabled while bucket or credentials are empty.
type BackupConfig struct {
	Endpoint  string        `yaml:"endpoint"`
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Prefix    string        `yaml:"prefix"`
	Retention time.Duration `yaml:"-"`

	RetentionRaw string `yaml:"retention"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":30022"},
		Database: DatabaseConfig{
			Path:           "linkshelf.db",
			MaxOpenConns:   4,
			BusyTimeoutRaw: "5s",
		},
		Session: SessionConfig{
			TTLRaw:           "0s",
			SweepIntervalRaw: "10m",
		},
		Auth: AuthConfig{
			HashScheme:        "plain",
			AllowRegistration: true,
		},
		Refresh: RefreshConfig{
			Enabled:     true,
			IntervalRaw: "1m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Backup: BackupConfig{
			Region:       "us-east-1",
			Prefix:       "linkshelf",
			RetentionRaw: "720h",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies LINKSHELF_*
// environment overrides, parses durations and validates the result. An empty
// path skips the file. Environment variables in the format ${VAR_NAME} are
// expanded inside the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"LINKSHELF_ADDR":             &cfg.Server.Addr,
		"LINKSHELF_DB_PATH":          &cfg.Database.Path,
		"LINKSHELF_DB_BUSY":          &cfg.Database.BusyTimeoutRaw,
		"LINKSHELF_SESSION_TTL":      &cfg.Session.TTLRaw,
		"LINKSHELF_HASH_SCHEME":      &cfg.Auth.HashScheme,
		"LINKSHELF_REFRESH_EVERY":    &cfg.Refresh.IntervalRaw,
		"LINKSHELF_LOG_LEVEL":        &cfg.Logging.Level,
		"LINKSHELF_LOG_FORMAT":       &cfg.Logging.Format,
		"LINKSHELF_SESSION_SWEEP":    &cfg.Session.SweepIntervalRaw,
		"LINKSHELF_S3_ENDPOINT":      &cfg.Backup.Endpoint,
		"LINKSHELF_S3_BUCKET":        &cfg.Backup.Bucket,
		"LINKSHELF_S3_REGION":        &cfg.Backup.Region,
		"LINKSHELF_S3_ACCESS_KEY":    &cfg.Backup.AccessKey,
		"LINKSHELF_S3_SECRET_KEY":    &cfg.Backup.SecretKey,
		"LINKSHELF_BACKUP_RETENTION": &cfg.Backup.RetentionRaw,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"LINKSHELF_SECURE_COOKIE":      &cfg.Session.SecureCookie,
		"LINKSHELF_ALLOW_REGISTRATION": &cfg.Auth.AllowRegistration,
		"LINKSHELF_REFRESH_ENABLED":    &cfg.Refresh.Enabled,
	}
	for key, dst := range bools {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}

	if v, ok := os.LookupEnv("LINKSHELF_DB_MAX_CONNS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LINKSHELF_DB_MAX_CONNS: %w", err)
		}
		cfg.Database.MaxOpenConns = n
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"database.busy_timeout", cfg.Database.BusyTimeoutRaw, &cfg.Database.BusyTimeout},
		{"session.ttl", cfg.Session.TTLRaw, &cfg.Session.TTL},
		{"session.sweep_interval", cfg.Session.SweepIntervalRaw, &cfg.Session.SweepInterval},
		{"refresh.interval", cfg.Refresh.IntervalRaw, &cfg.Refresh.Interval},
		{"backup.retention", cfg.Backup.RetentionRaw, &cfg.Backup.Retention},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate returns an error describing the first invalid field.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("database.busy_timeout must be positive")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must not be negative")
	}
	if c.Session.TTL > 0 && c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive when session.ttl is set")
	}
	switch c.Auth.HashScheme {
	case "plain", "bcrypt":
	default:
		return fmt.Errorf("auth.hash_scheme must be plain or bcrypt, got %q", c.Auth.HashScheme)
	}
	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive when refresh is enabled")
	}
	if c.Backup.Retention < 0 {
		return fmt.Errorf("backup.retention must not be negative")
	}
	return nil
}
