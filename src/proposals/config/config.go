package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	RedisURL      string
	SnapshotURL   string
	TallyURL      string
	TallyAPIKey   string
	RetryAttempts int
	RetryBase     time.Duration
	CacheTTL      time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() Config {
	attempts, err := strconv.Atoi(getenv("RETRY_MAX_ATTEMPTS", "5"))
	if err != nil || attempts < 1 {
		attempts = 5
	}
	base, err := strconv.Atoi(getenv("RETRY_BASE_DELAY", "3"))
	if err != nil || base < 0 {
		base = 3
	}
	ttl, err := strconv.Atoi(getenv("CACHE_TTL", "36000"))
	if err != nil || ttl < 1 {
		ttl = 36000
	}
	return Config{
		Port:          getenv("PORT", "5000"),
		RedisURL:      getenv("REDIS_URL", "localhost"),
		SnapshotURL:   getenv("SNAPSHOT_URL", "https://hub.snapshot.org/graphql"),
		TallyURL:      getenv("TALLY_URL", "https://api.tally.xyz/query"),
		TallyAPIKey:   os.Getenv("TALLY_API_KEY"),
		RetryAttempts: attempts,
		RetryBase:     time.Duration(base) * time.Second,
		CacheTTL:      time.Duration(ttl) * time.Second,
	}
}
