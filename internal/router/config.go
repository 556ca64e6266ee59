package router

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// MaxAttempts bounds Tier 3 calls for one decision, including the first.
	MaxAttempts int
	// RetryBaseDelay is the base of the exponential backoff between attempts.
	RetryBaseDelay time.Duration
}

func LoadConfig() Config {
	return Config{
		MaxAttempts:    getInt("ROUTER_MAX_ATTEMPTS", 3),
		RetryBaseDelay: getDuration("ROUTER_RETRY_BASE_DELAY", 250*time.Millisecond),
	}
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
