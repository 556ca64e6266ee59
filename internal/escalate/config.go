package escalate

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// ClassifierURL is the scoring endpoint for Tier 3.
	ClassifierURL string
	// Timeout bounds a single classifier call.
	Timeout time.Duration
	// ConfidenceCutoff is the weighted-confidence threshold separating
	// QualifiedTier3 from DisqualifiedTier3.
	ConfidenceCutoff float64
	// DecisionCostCents is the accounted cost of one escalated decision.
	DecisionCostCents int64
}

func LoadConfig() Config {
	return Config{
		ClassifierURL:     getenv("CLASSIFIER_URL", "http://127.0.0.1:9090/classify"),
		Timeout:           getDuration("CLASSIFIER_TIMEOUT", 30*time.Second),
		ConfidenceCutoff:  getFloat("CLASSIFIER_CONFIDENCE_CUTOFF", 0.7),
		DecisionCostCents: int64(getInt("CLASSIFIER_DECISION_COST_CENTS", 4)),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
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

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
