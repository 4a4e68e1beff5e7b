package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	directBaseURL   = "https://api.clashroyale.com/v1"
	defaultProxyURL = "https://proxy.royaleapi.dev/v1"
)

type Config struct {
	APIToken      string
	UseProxy      bool
	ProxyURL      string
	PlayerTags    []string
	RateLimitRPM  int
	PollInterval  time.Duration
	KFactor       float64
	InitialRating float64
	DBPath        string
	ServerPort    string
	LogLevel      string
}

// BaseURL returns the API base, routed through the RoyaleAPI proxy when
// enabled. The proxy has a fixed egress address that can be whitelisted
// once instead of the caller's own IP.
func (c *Config) BaseURL() string {
	if c.UseProxy {
		return c.ProxyURL
	}
	return directBaseURL
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		APIToken:      getEnv("CLASH_ROYALE_API_TOKEN", ""),
		UseProxy:      getEnv("USE_PROXY", "false") == "true",
		ProxyURL:      getEnv("PROXY_URL", defaultProxyURL),
		PlayerTags:    parseTags(getEnv("PLAYER_TAGS", "")),
		RateLimitRPM:  getEnvInt("RATE_LIMIT_RPM", 10),
		PollInterval:  time.Duration(getEnvInt("POLL_INTERVAL_MINUTES", 30)) * time.Minute,
		KFactor:       getEnvFloat("ELO_K_FACTOR", 32.0),
		InitialRating: getEnvFloat("ELO_INITIAL_RATING", 1200.0),
		DBPath:        getEnv("DB_PATH", "friends_league.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Bool("use_proxy", cfg.UseProxy).
		Str("base_url", cfg.BaseURL()).
		Int("player_count", len(cfg.PlayerTags)).
		Int("rate_limit_rpm", cfg.RateLimitRPM).
		Dur("poll_interval", cfg.PollInterval).
		Float64("k_factor", cfg.KFactor).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Msg("configuration loaded")

	return cfg, nil
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("CLASH_ROYALE_API_TOKEN is required")
	}
	if len(c.PlayerTags) < 2 {
		return fmt.Errorf("PLAYER_TAGS must list at least 2 tags, got %d", len(c.PlayerTags))
	}
	if c.RateLimitRPM < 1 {
		return fmt.Errorf("RATE_LIMIT_RPM must be >= 1, got %d", c.RateLimitRPM)
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("POLL_INTERVAL_MINUTES must be >= 1")
	}
	if c.KFactor <= 0 {
		return fmt.Errorf("ELO_K_FACTOR must be > 0, got %v", c.KFactor)
	}
	if c.UseProxy && c.ProxyURL == "" {
		return fmt.Errorf("PROXY_URL is required when USE_PROXY is set")
	}
	return nil
}

// parseTags splits a comma-separated tag list, trimming whitespace and the
// leading # the game client displays.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
