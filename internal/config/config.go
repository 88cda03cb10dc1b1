package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration: where to listen and where the
// stores live. Everything business-facing (provider credentials, toggles,
// UI copy) lives in the bot_settings table instead and is read per request.
type Config struct {
	ListenAddr string
	DBPath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
}

// Load reads config.env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load("config.env")

	cfg := &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		DBPath:        envOr("DB_PATH", "data/shop.db"),
		RedisAddr:     fmt.Sprintf("%s:%s", envOr("REDIS_HOST", "localhost"), envOr("REDIS_PORT", "6379")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     strings.TrimSpace(os.Getenv("PANEL_JWT_SECRET")),
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_DB")); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.RedisDB = db
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("PANEL_JWT_SECRET is required")
	}
	return cfg, nil
}

func envOr(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}
