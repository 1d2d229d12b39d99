// Package config loads server settings from an optional YAML file, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Mode     string         `mapstructure:"mode" validate:"oneof=debug release test"`
	Addr     string         `mapstructure:"addr" validate:"required"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Socket   SocketConfig   `mapstructure:"socket"`
}

// JWTConfig configures token signing.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// DatabaseConfig points at the Postgres database.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig holds connection settings for the token revocation store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// Debug reports whether the server runs in debug mode.
func (c *Config) Debug() bool { return c.Mode == "debug" }

const envPrefix = "EXPENSE"

// Load reads config/config.<CONFIG_ENV>.yaml if present, then applies
// EXPENSE_* environment variables. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unprefixed names used by existing deployments.
	_ = v.BindEnv("jwt.secret", envPrefix+"_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Debug().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv(envPrefix+"_ADDR") == "" {
		cfg.Addr = ":" + port
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("addr", ":4000")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", "1h")
	v.SetDefault("database.url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "expense:")

	s := DefaultSocketConfig()
	v.SetDefault("socket.max_connections", s.MaxConnections)
	v.SetDefault("socket.ping_interval", s.PingInterval)
	v.SetDefault("socket.write_timeout", s.WriteTimeout)
	v.SetDefault("socket.read_buffer", s.ReadBufferSize)
	v.SetDefault("socket.write_buffer", s.WriteBufferSize)
	v.SetDefault("socket.read_limit", s.ReadLimit)
	v.SetDefault("socket.send_buffer", s.SendBuffer)
}
