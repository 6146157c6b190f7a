package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServerPort           = 8080
	defaultEloKFactor           = 16
	defaultNextRoundNotifyDelay = 2 * time.Second
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL          string
	JWTSecretKey         string
	ServerPort           int
	EloKFactor           int
	NextRoundNotifyDelay time.Duration
	CORSAllowedOrigins   []string
	RunMigrations        bool

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function, so tests do not have to touch the process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getenv("DATABASE_URL"),
		JWTSecretKey:      getenv("JWT_SECRET_KEY"),
		R2AccountID:       getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	var err error
	if cfg.ServerPort, err = intVar(getenv, "SERVER_PORT", defaultServerPort); err != nil {
		return nil, err
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", cfg.ServerPort)
	}

	if cfg.EloKFactor, err = intVar(getenv, "ELO_K_FACTOR", defaultEloKFactor); err != nil {
		return nil, err
	}
	if cfg.EloKFactor <= 0 {
		return nil, fmt.Errorf("ELO_K_FACTOR must be positive, got %d", cfg.EloKFactor)
	}

	cfg.NextRoundNotifyDelay = defaultNextRoundNotifyDelay
	if raw := getenv("NEXT_ROUND_NOTIFY_DELAY"); raw != "" {
		if cfg.NextRoundNotifyDelay, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid NEXT_ROUND_NOTIFY_DELAY environment variable: %w", err)
		}
		if cfg.NextRoundNotifyDelay < 0 {
			return nil, fmt.Errorf("NEXT_ROUND_NOTIFY_DELAY cannot be negative, got %s", raw)
		}
	}

	cfg.CORSAllowedOrigins = []string{"*"}
	if raw := getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		origins := make([]string, 0)
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
		if len(origins) > 0 {
			cfg.CORSAllowedOrigins = origins
		}
	}

	cfg.RunMigrations = true
	if raw := getenv("RUN_MIGRATIONS"); raw != "" {
		if cfg.RunMigrations, err = strconv.ParseBool(raw); err != nil {
			return nil, fmt.Errorf("invalid RUN_MIGRATIONS environment variable: %w", err)
		}
	}

	return cfg, nil
}

// R2Configured reports whether every R2 setting is present.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intVar(getenv func(string) string, name string, def int) (int, error) {
	raw := getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}
