// Package config provides configuration loading for deck-narrator.
// Supports YAML files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Language matching policies for narration context.
const (
	MatchWholeWord = "whole_word"
	MatchSubstring = "substring"
)

// Config holds all configuration for deck-narrator.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Render        RenderConfig        `yaml:"render"`
	Narration     NarrationConfig     `yaml:"narration"`
	Database      DatabaseConfig      `yaml:"database"`
	Lock          LockConfig          `yaml:"lock"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	// PublicBaseURL is prepended to image paths in responses. Empty keeps them relative.
	PublicBaseURL  string   `yaml:"public_base_url"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	IdentityHeader string   `yaml:"identity_header"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

// StorageConfig holds filesystem locations.
type StorageConfig struct {
	SlidesDir  string `yaml:"slides_dir"`
	UploadsDir string `yaml:"uploads_dir"`
	URLPrefix  string `yaml:"url_prefix"`
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	SlideWidth    int           `yaml:"slide_width"`
	PDFDPI        float64       `yaml:"pdf_dpi"`
	OfficeBinary  string        `yaml:"office_binary"`
	OfficeTimeout time.Duration `yaml:"office_timeout"`
}

// NarrationConfig holds generation endpoint and context settings.
type NarrationConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxContextSlides int           `yaml:"max_context_slides"`
	LanguageMatch    string        `yaml:"language_match"`
	DefaultTone      string        `yaml:"default_tone"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LockConfig selects how same-presentation ingestions are serialized.
type LockConfig struct {
	Driver string        `yaml:"driver"` // memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	TLS       bool   `yaml:"tls"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8000,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   5 * time.Minute,
			GracefulShutdown: 15 * time.Second,
			MaxUploadBytes:   200 << 20,
			IdentityHeader:   "X-User-ID",
			CORSOrigins:      []string{"*"},
		},
		Storage: StorageConfig{
			SlidesDir:  "uploads/slides",
			UploadsDir: "uploads",
			URLPrefix:  "/uploads/slides",
		},
		Render: RenderConfig{
			SlideWidth:    1280,
			PDFDPI:        150,
			OfficeBinary:  "soffice",
			OfficeTimeout: 3 * time.Minute,
		},
		Narration: NarrationConfig{
			BaseURL:       "http://localhost:11434",
			Model:         "mistral",
			MaxTokens:     150,
			Timeout:       60 * time.Second,
			LanguageMatch: MatchWholeWord,
			DefaultTone:   "Formal",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "deck-narrator.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Lock: LockConfig{
			Driver: "memory",
			TTL:    5 * time.Minute,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				PoolSize:  10,
				KeyPrefix: "deck-narrator:",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "deck-narrator",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.IdentityHeader == "" {
		return fmt.Errorf("identity_header must not be empty")
	}

	if c.Storage.SlidesDir == "" || c.Storage.UploadsDir == "" {
		return fmt.Errorf("slides_dir and uploads_dir are required")
	}

	if c.Render.SlideWidth < 1 {
		return fmt.Errorf("invalid slide width: %d", c.Render.SlideWidth)
	}

	if c.Render.PDFDPI < 36 || c.Render.PDFDPI > 600 {
		return fmt.Errorf("pdf_dpi must be between 36 and 600, got %v", c.Render.PDFDPI)
	}

	if c.Narration.BaseURL == "" || c.Narration.Model == "" {
		return fmt.Errorf("narration base_url and model are required")
	}

	if c.Narration.Timeout <= 0 {
		return fmt.Errorf("narration timeout must be positive")
	}

	if c.Narration.MaxContextSlides < 0 {
		return fmt.Errorf("max_context_slides must not be negative")
	}

	if c.Narration.LanguageMatch != MatchWholeWord && c.Narration.LanguageMatch != MatchSubstring {
		return fmt.Errorf("invalid language_match: %s", c.Narration.LanguageMatch)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres dsn is required")
	}

	if c.Lock.Driver != "memory" && c.Lock.Driver != "redis" {
		return fmt.Errorf("invalid lock driver: %s", c.Lock.Driver)
	}

	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("SLIDES_DIR"); v != "" {
		cfg.Storage.SlidesDir = v
	}

	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		cfg.Storage.UploadsDir = v
	}

	if v := os.Getenv("SOFFICE_PATH"); v != "" {
		cfg.Render.OfficeBinary = v
	}

	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Narration.BaseURL = normalizeBaseURL(v)
	}

	if v := os.Getenv("NARRATION_BASE_URL"); v != "" {
		cfg.Narration.BaseURL = normalizeBaseURL(v)
	}

	if v := os.Getenv("NARRATION_MODEL"); v != "" {
		cfg.Narration.Model = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		opts, err := redis.ParseURL(v)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		cfg.Lock.Driver = "redis"
		cfg.Lock.Redis.Addr = opts.Addr
		cfg.Lock.Redis.Username = opts.Username
		cfg.Lock.Redis.Password = opts.Password
		cfg.Lock.Redis.DB = opts.DB
		cfg.Lock.Redis.TLS = opts.TLSConfig != nil
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

// normalizeBaseURL accepts bare host:port values the way OLLAMA_HOST is usually set.
func normalizeBaseURL(v string) string {
	v = strings.TrimRight(v, "/")
	if !strings.Contains(v, "://") {
		v = "http://" + v
	}
	return v
}
