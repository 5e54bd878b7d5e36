// Package config provides configuration management for the support portal.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
//
// Import Path: supportportal.io/portal/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OFD      OFDConfig      `mapstructure:"ofd"`
	SSH      SSHConfig      `mapstructure:"ssh"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pgx pool is shared by the repositories and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings.
// Missing secrets are generated on first boot.
type SecurityConfig struct {
	// EncryptionKey seals stored integration credentials (hex, 32 bytes).
	EncryptionKey string `mapstructure:"encryption_key"`
	// SessionSecret signs JWT access and refresh tokens.
	SessionSecret   string        `mapstructure:"session_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
	MinPasswordLen  int           `mapstructure:"min_password_length"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize     int `mapstructure:"general_pool_size"`
	IntegrationPoolSize int `mapstructure:"integration_pool_size"`
}

// StorageConfig controls where uploaded client files live.
type StorageConfig struct {
	MediaRoot     string `mapstructure:"media_root"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

// OFDConfig configures the fiscal data operator lookup.
type OFDConfig struct {
	// ScriptPath is the external lookup executable. Empty disables lookups.
	ScriptPath      string        `mapstructure:"script_path"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// SSHConfig configures remote command execution on client routers.
type SSHConfig struct {
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	KnownHostsFile string        `mapstructure:"known_hosts_file"`

	// InsecureIgnoreHostKey lets SSH run without known_hosts. Development only.
	InsecureIgnoreHostKey bool `mapstructure:"insecure_ignore_host_key"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Environment variables carry no prefix: database.max_conns maps to DATABASE_MAX_CONNS.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/support-portal")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.SessionSecret == "" {
		return fmt.Errorf("security.session_secret must not be empty")
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("security.session_secret must be at least 32 characters")
	}
	if c.Security.EncryptionKey != "" {
		key, err := hex.DecodeString(c.Security.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("security.encryption_key must be 64 hex characters")
		}
	}
	if c.Storage.MaxUploadSize < 0 {
		return fmt.Errorf("storage.max_upload_size must not be negative")
	}
	return nil
}

// EncryptionKeyBytes decodes the hex encryption key. Call after Validate.
func (c SecurityConfig) EncryptionKeyBytes() ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return out, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("encryption key length = %d bytes, want %d", len(raw), len(out))
	}
	copy(out[:], raw)
	return out, nil
}

func (c *Config) ensureSecrets() error {
	if c.Security.SessionSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate session secret: %w", err)
		}
		c.Security.SessionSecret = secret
		logBootstrapWarn(
			"auto-generated session_secret; set SECURITY_SESSION_SECRET so tokens survive restarts",
			zap.Int("length", len(secret)),
		)
	}
	if c.Security.EncryptionKey == "" {
		key, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate encryption key: %w", err)
		}
		c.Security.EncryptionKey = key
		logBootstrapWarn(
			"auto-generated encryption_key; set SECURITY_ENCRYPTION_KEY or stored credentials become unreadable after restart",
			zap.Int("length", len(key)),
		)
	}
	return nil
}

// logBootstrapWarn logs before the global logger exists.
func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)

	// Database
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "portal")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "portal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", true)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 5)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.session_secret", "")
	v.SetDefault("security.access_token_ttl", "12h")
	v.SetDefault("security.refresh_token_ttl", "168h")
	v.SetDefault("security.issuer", "support-portal")
	v.SetDefault("security.min_password_length", 6)

	// Worker pools
	v.SetDefault("worker.general_pool_size", 50)
	v.SetDefault("worker.integration_pool_size", 8)

	// Storage
	v.SetDefault("storage.media_root", "./media")
	v.SetDefault("storage.max_upload_size", 50<<20)

	// OFD
	v.SetDefault("ofd.script_path", "")
	v.SetDefault("ofd.timeout", "60s")
	v.SetDefault("ofd.refresh_interval", "24h")

	// SSH
	v.SetDefault("ssh.dial_timeout", "10s")
	v.SetDefault("ssh.command_timeout", "30s")
	v.SetDefault("ssh.known_hosts_file", "")
	v.SetDefault("ssh.insecure_ignore_host_key", false)
}
