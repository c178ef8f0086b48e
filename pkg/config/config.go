package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for report-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables; environment variables override YAML values. Secrets
// (PGPASSWORD, JWT_SECRET) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3001"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// CORSOrigins is a list of allowed SPA origins.
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-default:"http://localhost:3000"`

	Auth        AuthConfig        `yaml:"auth"`
	Database    DatabaseConfig    `yaml:"database"`
	Suggestions SuggestionsConfig `yaml:"suggestions"`
	Uploads     UploadsConfig     `yaml:"uploads"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	// JWTSecret signs access tokens (HS256). Server refuses to start
	// without it outside the local environment.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"`

	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"1h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"720h"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"otscribe"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"report_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// SuggestionsConfig holds the suggestion engine's tunables. Defaults
// mirror the behavior the report wizard was built against.
type SuggestionsConfig struct {
	// UsageThreshold is the minimum usage count for a suggestion to
	// appear in the candidate pool.
	UsageThreshold int `yaml:"usage_threshold" env:"SUGGESTIONS_USAGE_THRESHOLD" env-default:"1"`

	// SecondOrderThreshold is the first-order frequency a pattern must
	// exceed before composite second-order patterns are recorded.
	SecondOrderThreshold int `yaml:"second_order_threshold" env:"SUGGESTIONS_SECOND_ORDER_THRESHOLD" env-default:"3"`

	// ContextHighWater marks a candidate as strongly contextual; such
	// candidates fill smart-pick slots ahead of usage-ranked ones.
	ContextHighWater float64 `yaml:"context_high_water" env:"SUGGESTIONS_CONTEXT_HIGH_WATER" env-default:"0.7"`

	// DropdownLimit caps the inline dropdown list.
	DropdownLimit int `yaml:"dropdown_limit" env:"SUGGESTIONS_DROPDOWN_LIMIT" env-default:"8"`

	// Smart-pick caps by field display size.
	SmartPicksShort  int `yaml:"smart_picks_short" env:"SUGGESTIONS_SMART_PICKS_SHORT" env-default:"3"`
	SmartPicksMedium int `yaml:"smart_picks_medium" env:"SUGGESTIONS_SMART_PICKS_MEDIUM" env-default:"4"`
	SmartPicksLong   int `yaml:"smart_picks_long" env:"SUGGESTIONS_SMART_PICKS_LONG" env-default:"5"`
}

// UploadsConfig holds template blob storage settings.
type UploadsConfig struct {
	// TemplatesDir is where uploaded .docx files are written.
	TemplatesDir string `yaml:"templates_dir" env:"UPLOADS_TEMPLATES_DIR" env-default:"uploads/templates"`

	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"UPLOADS_MAX_BYTES" env-default:"10485760"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" && c.Env != "local" {
		return fmt.Errorf("JWT_SECRET must be set in %q environment", c.Env)
	}
	if c.Suggestions.SecondOrderThreshold < 1 {
		return fmt.Errorf("suggestions.second_order_threshold must be >= 1")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
