package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	APIID    int
	APIHash  string
	BotToken string

	LoginTimeout time.Duration
	PageLimit    int
	ApproveDelay time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("config.Load: no .env file found - using env variables")
	}

	cfg := &Config{
		APIHash:  os.Getenv("API_HASH"),
		BotToken: os.Getenv("BOT_TOKEN"),
	}

	rawID := os.Getenv("API_ID")
	if rawID == "" {
		return nil, fmt.Errorf("config.Load: API_ID is required")
	}
	apiID, err := strconv.Atoi(rawID)
	if err != nil {
		return nil, fmt.Errorf("config.Load: API_ID must be an integer: %w", err)
	}
	cfg.APIID = apiID

	if cfg.APIHash == "" {
		return nil, fmt.Errorf("config.Load: API_HASH is required")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("config.Load: BOT_TOKEN is required")
	}

	cfg.LoginTimeout = time.Duration(getEnvAsInt("LOGIN_TIMEOUT_SECONDS", 300)) * time.Second
	cfg.PageLimit = getEnvAsInt("APPROVE_PAGE_LIMIT", 200)
	cfg.ApproveDelay = time.Duration(getEnvAsInt("APPROVE_DELAY_MS", 1000)) * time.Millisecond

	return cfg, nil
}

func getEnvAsInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultVal).Msg("value must be an integer, using default")
		return defaultVal
	}
	return val
}
