package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type HTTPConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	FallbackURL string `mapstructure:"fallback_url"`
}

// RedisConfig enables the read-through cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TracingConfig exports spans over OTLP/HTTP when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// bindings maps config keys to the environment variables that override them.
var bindings = map[string]string{
	"http.port":             "PORT",
	"http.timeout":          "HTTP_TIMEOUT",
	"database.url":          "DATABASE_URL",
	"database.fallback_url": "DATABASE_FALLBACK_URL",
	"redis.addr":            "REDIS_ADDR",
	"redis.password":        "REDIS_PASSWORD",
	"redis.db":              "REDIS_DB",
	"redis.ttl":             "CACHE_TTL",
	"tracing.endpoint":      "OTEL_EXPORTER_OTLP_ENDPOINT",
	"tracing.service_name":  "SERVICE_NAME",
	"tracing.environment":   "ENVIRONMENT",
	"tracing.version":       "SERVICE_VERSION",
	"logger.level":          "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 5001)
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("database.url", "postgres://localhost:5432/ads_db")
	v.SetDefault("database.fallback_url", "sqlite:///instance/ads.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "10m")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "ads-api")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.version", "dev")
	v.SetDefault("logger.level", "info")
}

// LoadConfig reads defaults, an optional config.yaml in the working directory
// and the environment. A .env file is loaded first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.HTTP.Port)
	}
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL must not be empty")
	}
	return nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	return config
}
