package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrMisconfigured = errors.New("config invalid")

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	GinMode        string   `env:"GIN_MODE" envDefault:"release"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	StoreDriver    string   `env:"STORE_DRIVER" envDefault:"postgres"`
}

type PostgresConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Host        string `env:"PGHOST" envDefault:"localhost"`
	Port        string `env:"PGPORT" envDefault:"5432"`
	User        string `env:"PGUSER"`
	Password    string `env:"PGPASSWORD"`
	Database    string `env:"PGDATABASE"`
	SSLMode     string `env:"PGSSLMODE" envDefault:"disable"`
}

type AuthConfig struct {
	SecretKey            string  `env:"SECRET_KEY"`
	Algorithm            string  `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpireMinutes  float64 `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"`
	RefreshExpireMinutes float64 `env:"REFRESH_TOKEN_EXPIRE_MINUTES" envDefault:"10080"`
	HashAlgorithm        string  `env:"HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost           int     `env:"BCRYPT_COST" envDefault:"12"`
	RotateRefreshOnUse   bool    `env:"AUTH_ROTATE_REFRESH_ON_USE" envDefault:"false"`
}

// AccessTTL and RefreshTTL convert the minute based env settings into durations.
func (c AuthConfig) AccessTTL() time.Duration {
	return minutes(c.AccessExpireMinutes)
}

func (c AuthConfig) RefreshTTL() time.Duration {
	return minutes(c.RefreshExpireMinutes)
}

type RedisConfig struct {
	Addr             string        `env:"REDIS_ADDR"`
	Password         string        `env:"REDIS_PASSWORD"`
	DB               int           `env:"REDIS_DB" envDefault:"0"`
	LoginMaxFailures int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginLockout     time.Duration `env:"LOGIN_LOCKOUT" envDefault:"15m"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.SecretKey) == "" {
		return fmt.Errorf("%w: SECRET_KEY is required", ErrMisconfigured)
	}
	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: unsupported ALGORITHM %q", ErrMisconfigured, c.Auth.Algorithm)
	}
	if c.Auth.AccessTTL() <= 0 {
		return fmt.Errorf("%w: ACCESS_TOKEN_EXPIRE_MINUTES must be positive", ErrMisconfigured)
	}
	if c.Auth.RefreshTTL() <= c.Auth.AccessTTL() {
		return fmt.Errorf("%w: REFRESH_TOKEN_EXPIRE_MINUTES must exceed ACCESS_TOKEN_EXPIRE_MINUTES", ErrMisconfigured)
	}
	switch c.Auth.HashAlgorithm {
	case "bcrypt", "argon2id":
	default:
		return fmt.Errorf("%w: unsupported HASH_ALGORITHM %q", ErrMisconfigured, c.Auth.HashAlgorithm)
	}
	switch c.Server.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("%w: unsupported STORE_DRIVER %q", ErrMisconfigured, c.Server.StoreDriver)
	}
	if c.Redis.Addr != "" && c.Redis.LoginMaxFailures <= 0 {
		return fmt.Errorf("%w: LOGIN_MAX_FAILURES must be positive", ErrMisconfigured)
	}
	return nil
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}
