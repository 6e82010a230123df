package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "COURSEAUTH"

// Config holds all service configuration.
type Config struct {
	Environment string

	Auth     AuthConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Realtime RealtimeConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Admin    AdminConfig
}

// AuthConfig is the token configuration. SigningKey has no default.
type AuthConfig struct {
	SigningKey string
	TokenTTL   string
}

type HTTPConfig struct {
	Addr string
}

type DatabaseConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

type RealtimeConfig struct {
	Path             string
	HandshakeTimeout time.Duration
}

// RedisConfig enables cross instance pushes when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type LoggerConfig struct {
	Level    string
	Mode     string
	Encoding string
}

// AdminConfig seeds an administrator at start-up when Email is set
type AdminConfig struct {
	Email       string
	Password    string
	DisplayName string
}

func (c *Config) GetSigningKey() string { return c.Auth.SigningKey }
func (c *Config) GetTokenTTL() string   { return c.Auth.TokenTTL }

func (d DatabaseConfig) GetDriver() string { return d.Driver }
func (d DatabaseConfig) GetDSN() string    { return d.DSN }
func (d DatabaseConfig) GetDebug() bool    { return d.Debug }

func (d DatabaseConfig) GetPingTimeout() time.Duration { return d.PingTimeout }

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the COURSEAUTH_ prefix with dots replaced by
// underscores, e.g. COURSEAUTH_AUTH_SIGNING_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("course-auth")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	cfg.Environment = v.GetString("environment")

	cfg.Auth.SigningKey = v.GetString("auth.signing_key")
	cfg.Auth.TokenTTL = v.GetString("auth.token_ttl")

	cfg.HTTP.Addr = v.GetString("http.addr")

	cfg.Database.Driver = v.GetString("database.driver")
	cfg.Database.DSN = v.GetString("database.dsn")
	cfg.Database.Debug = v.GetBool("database.debug")
	cfg.Database.PingTimeout = v.GetDuration("database.ping_timeout")

	cfg.Realtime.Path = v.GetString("realtime.path")
	cfg.Realtime.HandshakeTimeout = v.GetDuration("realtime.handshake_timeout")

	cfg.Redis.Addr = v.GetString("redis.addr")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.Channel = v.GetString("redis.channel")

	cfg.Logger.Level = v.GetString("logger.level")
	cfg.Logger.Mode = v.GetString("logger.mode")
	cfg.Logger.Encoding = v.GetString("logger.encoding")

	cfg.Admin.Email = v.GetString("admin.email")
	cfg.Admin.Password = v.GetString("admin.password")
	cfg.Admin.DisplayName = v.GetString("admin.display_name")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", "7d")

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file::memory:?cache=shared")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.ping_timeout", "5s")

	v.SetDefault("realtime.path", "/ws")
	v.SetDefault("realtime.handshake_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "courseauth:realtime")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", "production")
	v.SetDefault("logger.encoding", "json")

	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.display_name", "Administrator")
}

// Validate checks values that would otherwise fail late. A missing signing
// key is not an error here: every authentication then fails as a server
// misconfiguration.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Realtime.HandshakeTimeout <= 0 {
		return errors.New("realtime.handshake_timeout must be positive")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin.password is required when admin.email is set")
	}
	return nil
}
