package config

import (
	"os"
	"time"
)

// Config carries the messenger session parameters resolved from the
// environment. Database and cache DSNs (DB_URL, REDIS_URL) are read by their
// adapters directly.
type Config struct {
	GatewayURL     string
	ConversationID string
	ParticipantID  string
	Role           string

	HistoryCacheTTL time.Duration
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads all env vars and builds the config.
func Load() *Config {
	return &Config{
		GatewayURL:      getEnv("GATEWAY_URL", "ws://127.0.0.1:8000"),
		ConversationID:  getEnv("KALASETU_CONVERSATION_ID", ""),
		ParticipantID:   getEnv("KALASETU_USER_ID", ""),
		Role:            getEnv("KALASETU_ROLE", "buyer"),
		HistoryCacheTTL: getDurationEnv("KALASETU_HISTORY_CACHE_TTL", 15*time.Minute),
	}
}
