// Package config loads engine configuration from a YAML file with
// environment variable overrides. Secrets are environment-only.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root engine configuration.
type Config struct {
	Environment string         `yaml:"environment" env:"ENGINE_ENV" env-default:"production"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	LLM         LLMConfig      `yaml:"llm"`
	Auth        AuthConfig     `yaml:"auth"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
	Credentials CredentialsConfig
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig points at the engine's own Postgres instance, which
// holds data source records and query history.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"lumina"`
	User     string `yaml:"user" env:"DB_USER" env-default:"lumina"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
}

// ConnectionString builds the pgx DSN for the engine database.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// LLMConfig selects and configures the SQL generation model.
// Provider is "anthropic" or "openai".
type LLMConfig struct {
	Provider string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"anthropic"`
	Model    string        `yaml:"model" env:"LLM_MODEL" env-default:"claude-sonnet-4-20250514"`
	APIKey   string        `yaml:"-" env:"LLM_API_KEY"`
	BaseURL  string        `yaml:"base_url" env:"LLM_BASE_URL"`
	Timeout  time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
}

// AuthConfig holds the HS256 signing secret for request tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET"`
}

// PipelineConfig carries the query pipeline tunables.
type PipelineConfig struct {
	ExecutionTimeout  time.Duration `yaml:"execution_timeout" env:"PIPELINE_EXECUTION_TIMEOUT" env-default:"30s"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" env:"PIPELINE_CONNECTION_TIMEOUT" env-default:"10s"`
	MaxResponseRows   int           `yaml:"max_response_rows" env:"PIPELINE_MAX_RESPONSE_ROWS" env-default:"500"`
	DefaultRowLimit   int           `yaml:"default_row_limit" env:"PIPELINE_DEFAULT_ROW_LIMIT" env-default:"1000"`
}

// CredentialsConfig holds the key used to encrypt data source passwords
// at rest. Never read from YAML.
type CredentialsConfig struct {
	EncryptionKey string `env:"CREDENTIALS_ENCRYPTION_KEY"`
}

// Load reads configuration from the given YAML path (if it exists) and
// applies environment overrides. A missing file is not an error; the
// environment alone can configure the engine.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			return &cfg, cfg.validate()
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Credentials.EncryptionKey == "" {
		return fmt.Errorf("CREDENTIALS_ENCRYPTION_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLM.Provider)
	}
	return nil
}
