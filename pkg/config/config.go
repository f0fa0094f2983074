package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSecret = "dev_secret"
)

type Config struct {
	Env       string `validate:"oneof=development staging production test"`
	Port      int    `validate:"min=1,max=65535"`
	APIPrefix string `validate:"startswith=/"`

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Workflow  WorkflowConfig
	Stats     StatsConfig
	Badges    BadgeConfig
	RateLimit RateLimitConfig
}

type DatabaseConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"min=1,max=65535"`
	User         string `validate:"required"`
	Password     string
	Name         string `validate:"required"`
	SSLMode      string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns int    `validate:"min=1"`
	MaxIdleConns int    `validate:"min=0,ltefield=MaxOpenConns"`
	AutoMigrate  bool

	ConnMaxLifetime time.Duration
	ConnectAttempts int `validate:"min=1"`
	ConnectBackoff  time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int `validate:"min=0,max=65535"`
	Password string
	DB       int `validate:"min=0"`
	PoolSize int `validate:"min=1"`
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret     string `validate:"required"`
	Issuer     string
	Expiration time.Duration `validate:"gt=0"`
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

// WorkflowConfig tunes the fan-out repair machinery.
type WorkflowConfig struct {
	RepairSchedule string `validate:"required"`
	RepairBatch    int    `validate:"min=1"`
	RepairWorkers  int    `validate:"min=1"`
	RepairRetries  int    `validate:"min=0"`
	RepairDelay    time.Duration
	RepairGrace    time.Duration
}

type StatsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

type BadgeConfig struct {
	Enabled bool
}

// RateLimitConfig throttles mutating workflow routes per actor. Zero RPS disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `validate:"min=0"`
	Burst             int     `validate:"min=0"`
}

var defaults = map[string]any{
	"ENV":        EnvDevelopment,
	"PORT":       8080,
	"API_PREFIX": "/api/v1",

	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "postgres",
	"DB_PASSWORD":          "postgres",
	"DB_NAME":              "credpoints",
	"DB_SSL_MODE":          "disable",
	"DB_MAX_OPEN_CONNS":    10,
	"DB_MAX_IDLE_CONNS":    5,
	"DB_AUTO_MIGRATE":      true,
	"DB_CONN_MAX_LIFETIME": "1h",
	"DB_CONNECT_ATTEMPTS":  5,
	"DB_CONNECT_BACKOFF":   "2s",

	"REDIS_ENABLED":   true,
	"REDIS_HOST":      "localhost",
	"REDIS_PORT":      6379,
	"REDIS_PASSWORD":  "",
	"REDIS_DB":        0,
	"REDIS_POOL_SIZE": 20,
	"REDIS_TIMEOUT":   "500ms",

	"JWT_SECRET":     devJWTSecret,
	"JWT_ISSUER":     "credpoints-api",
	"JWT_EXPIRATION": "24h",

	"ALLOWED_ORIGINS": "",
	"LOG_LEVEL":       "info",
	"LOG_FORMAT":      "json",

	"WORKFLOW_REPAIR_SCHEDULE": "@every 5m",
	"WORKFLOW_REPAIR_BATCH":    100,
	"WORKFLOW_REPAIR_WORKERS":  2,
	"WORKFLOW_REPAIR_RETRIES":  5,
	"WORKFLOW_REPAIR_DELAY":    "5s",
	"WORKFLOW_REPAIR_GRACE":    "1m",

	"ENABLE_STATS_CACHE": true,
	"STATS_CACHE_TTL":    "5m",
	"ENABLE_BADGES":      true,

	"RATE_LIMIT_RPS":   5,
	"RATE_LIMIT_BURST": 10,
}

// Load reads .env (when present) and the process environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	}

	r := reader{v}
	cfg := &Config{
		Env:       strings.ToLower(v.GetString("ENV")),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
			ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME"),
			ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
			ConnectBackoff:  r.duration("DB_CONNECT_BACKOFF"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			PoolSize: v.GetInt("REDIS_POOL_SIZE"),
			Timeout:  r.duration("REDIS_TIMEOUT"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("JWT_SECRET"),
			Issuer:     v.GetString("JWT_ISSUER"),
			Expiration: r.duration("JWT_EXPIRATION"),
		},
		CORS: CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Workflow: WorkflowConfig{
			RepairSchedule: v.GetString("WORKFLOW_REPAIR_SCHEDULE"),
			RepairBatch:    v.GetInt("WORKFLOW_REPAIR_BATCH"),
			RepairWorkers:  v.GetInt("WORKFLOW_REPAIR_WORKERS"),
			RepairRetries:  v.GetInt("WORKFLOW_REPAIR_RETRIES"),
			RepairDelay:    r.duration("WORKFLOW_REPAIR_DELAY"),
			RepairGrace:    r.duration("WORKFLOW_REPAIR_GRACE"),
		},
		Stats: StatsConfig{
			CacheEnabled: v.GetBool("ENABLE_STATS_CACHE"),
			CacheTTL:     r.duration("STATS_CACHE_TTL"),
		},
		Badges: BadgeConfig{Enabled: v.GetBool("ENABLE_BADGES")},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and refuses the development JWT secret in production.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Env == EnvProduction && c.JWT.Secret == devJWTSecret {
		return errors.New("invalid configuration: JWT_SECRET must be set in production")
	}
	return nil
}

type reader struct{ v *viper.Viper }

// duration parses key, falling back to its registered default when the value is malformed.
func (r reader) duration(key string) time.Duration {
	if d, err := time.ParseDuration(r.v.GetString(key)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(fmt.Sprint(defaults[key]))
	return d
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
