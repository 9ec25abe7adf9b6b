package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	// Discord Bot
	DiscordToken string

	// Discord OAuth2
	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string

	// Database
	DatabaseURL string

	// Web Server
	WebBind      string
	WebUIBaseURL string

	// Session
	JWTSecret string

	// Voice transcription (optional; voice messages are rejected without it)
	OpenAIKey string

	// Accounting pipeline
	Tolerance          decimal.Decimal
	FuzzyThreshold     float64
	SessionIdleTimeout time.Duration
	DefaultCategories  []string

	// ReportChannels maps guild id to the channel that receives the daily
	// reminder and the weekly report.
	ReportChannels map[string]string
	ReminderHour   int
	ReportHour     int
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		WebBind:             getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  getEnvDefault("DISCORD_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		JWTSecret:           getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
	}

	// Extract base URL from redirect URI
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DiscordClientID == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_ID is required")
	}
	if cfg.DiscordClientSecret == "" {
		return nil, fmt.Errorf("DISCORD_CLIENT_SECRET is required")
	}

	var err error
	cfg.Tolerance, err = decimal.NewFromString(getEnvDefault("ENERGY_TOLERANCE", "0.01"))
	if err != nil || cfg.Tolerance.IsNegative() {
		return nil, fmt.Errorf("ENERGY_TOLERANCE must be a non-negative decimal fraction")
	}
	cfg.FuzzyThreshold, err = strconv.ParseFloat(getEnvDefault("FUZZY_MATCH_THRESHOLD", "0.8"), 64)
	if err != nil || cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return nil, fmt.Errorf("FUZZY_MATCH_THRESHOLD must be between 0 and 1")
	}
	cfg.SessionIdleTimeout, err = time.ParseDuration(getEnvDefault("SESSION_IDLE_TIMEOUT", "30m"))
	if err != nil || cfg.SessionIdleTimeout < 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TIMEOUT must be a non-negative duration")
	}
	cfg.ReminderHour, err = parseHour(getEnvDefault("REMINDER_HOUR", "18"))
	if err != nil {
		return nil, fmt.Errorf("REMINDER_HOUR: %w", err)
	}
	cfg.ReportHour, err = parseHour(getEnvDefault("REPORT_HOUR", "19"))
	if err != nil {
		return nil, fmt.Errorf("REPORT_HOUR: %w", err)
	}

	cfg.DefaultCategories = splitList(getEnvDefault("CATEGORY_DEFAULTS",
		"medical,navigation,morale,engineering,food,maintenance"))

	cfg.ReportChannels, err = parseChannelMap(os.Getenv("REPORT_CHANNELS"))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseHour(s string) (int, error) {
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q is not an hour between 0 and 23", s)
	}
	return h, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseChannelMap reads "guildID:channelID,guildID:channelID" pairs.
func parseChannelMap(s string) (map[string]string, error) {
	chans := make(map[string]string)
	for _, pair := range splitList(s) {
		guild, channel, ok := strings.Cut(pair, ":")
		if !ok || guild == "" || channel == "" {
			return nil, fmt.Errorf("REPORT_CHANNELS entry %q is not guild:channel", pair)
		}
		chans[guild] = channel
	}
	return chans, nil
}

func extractBaseURL(redirectURI string) string {
	// Extract base URL from redirect URI using url.Parse
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
