package auth

import (
	"os"
	"strconv"
)

type Config struct {
	// HashAlgorithm selects "bcrypt" or "argon2" for stored key hashes.
	HashAlgorithm string
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8
	// SeedKeys configures credentials as "name:role:rawkey" triples joined
	// by commas, e.g. "ci:ANALYST:rdc_abc,lead:DIRECTOR:rdc_def".
	SeedKeys string
	// RateLimitPerMinute bounds authenticated requests per key.
	RateLimitPerMinute int
}

func LoadConfig() Config {
	return Config{
		HashAlgorithm:      getenv("AUTH_HASH_ALGORITHM", "bcrypt"),
		BcryptCost:         getInt("AUTH_BCRYPT_COST", 10),
		Argon2Time:         uint32(getInt("AUTH_ARGON2_TIME", 1)),
		Argon2Memory:       uint32(getInt("AUTH_ARGON2_MEMORY", 64*1024)),
		Argon2Threads:      uint8(getInt("AUTH_ARGON2_THREADS", 4)),
		SeedKeys:           os.Getenv("AUTH_API_KEYS"),
		RateLimitPerMinute: getInt("AUTH_RATE_PER_MIN", 120),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
