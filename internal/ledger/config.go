package ledger

import (
	"os"
	"strconv"
)

type Config struct {
	// Backend selects "sqlite" or "memory".
	Backend string
	// DBPath is the SQLite file location.
	DBPath string
	// RecoveryDepth is how many tail entries are re-verified on open;
	// 0 re-verifies the whole chain.
	RecoveryDepth uint64
	// SigningKey enables HMAC entry signatures when non-empty.
	SigningKey string
}

func LoadConfig() Config {
	return Config{
		Backend:       getenv("LEDGER_BACKEND", "sqlite"),
		DBPath:        getenv("LEDGER_DB_PATH", "./data/ledger.db"),
		RecoveryDepth: uint64(getInt("LEDGER_RECOVERY_DEPTH", 0)),
		SigningKey:    os.Getenv("LEDGER_SIGNING_KEY"),
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
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return def
}
