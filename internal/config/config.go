package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/groundtruth-intake-api/internal/validation"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is read when CONFIG_PATH is not set
const DefaultConfigPath = "config.yaml"

// Config holds all application configuration.
// Values come from an optional YAML file; environment variables override them.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database"`

	// Upload configuration
	Upload UploadConfig `yaml:"upload"`

	// Validation rules
	Validation ValidationConfig `yaml:"validation"`

	// Background processing
	Processing ProcessingConfig `yaml:"processing"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string        `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         string        `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User         string        `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password     string        `yaml:"-" env:"DB_PASSWORD" env-default:"postgres"`
	Name         string        `yaml:"name" env:"DB_NAME" env-default:"groundtruth"`
	SSLMode      string        `yaml:"ssl_mode" env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxLifetime  time.Duration `yaml:"max_lifetime" env:"DB_MAX_LIFETIME" env-default:"5m"`
}

// UploadConfig holds ground truth upload settings
type UploadConfig struct {
	MaxUploadSize int64  `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"10485760"` // 10MB
	UploadDir     string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"./data/uploads"`
}

// ValidationConfig holds validation rule settings
type ValidationConfig struct {
	// MatchMode is "substring" (any header containing the name) or "strict"
	MatchMode string `yaml:"match_mode" env:"VALIDATION_MATCH_MODE" env-default:"substring"`
}

// ProcessingConfig holds background processing settings
type ProcessingConfig struct {
	Delay        time.Duration `yaml:"delay" env:"PROCESSING_DELAY" env-default:"3s"`
	PollInterval time.Duration `yaml:"poll_interval" env:"PROCESSING_POLL_INTERVAL" env-default:"2s"`
	MaxWorkers   int           `yaml:"max_workers" env:"PROCESSING_MAX_WORKERS" env-default:"0"` // 0 sizes from NumCPU
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // "json" or "pretty"
}

// Load reads configuration from the YAML file at CONFIG_PATH (if present) and the environment
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultConfigPath
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path, falling back to the environment alone when
// the file does not exist
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Upload.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if _, err := validation.ParseMatchMode(c.Validation.MatchMode); err != nil {
		return fmt.Errorf("VALIDATION_MATCH_MODE: %w", err)
	}
	if c.Processing.PollInterval <= 0 {
		return fmt.Errorf("PROCESSING_POLL_INTERVAL must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Mode returns the parsed column match mode
func (c *ValidationConfig) Mode() validation.MatchMode {
	mode, err := validation.ParseMatchMode(c.MatchMode)
	if err != nil {
		return validation.MatchSubstring
	}
	return mode
}
