package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefix is prepended to all API keys for easy identification in logs and
// configuration.
const KeyPrefix = "rdc_"

// ErrInvalidKeyFormat indicates the raw key is missing the expected prefix.
var ErrInvalidKeyFormat = errors.New("invalid API key format")

// GenerateAPIKey produces a new random key in the rdc_<base64url> format.
func GenerateAPIKey() (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(keyBytes), nil
}

// HashKey hashes a raw API key with the configured algorithm.
func HashKey(rawKey string, cfg Config) (string, error) {
	keyData := strings.TrimPrefix(rawKey, KeyPrefix)
	if keyData == rawKey {
		return "", ErrInvalidKeyFormat
	}
	switch cfg.HashAlgorithm {
	case "argon2":
		return hashArgon2(keyData, cfg)
	default:
		hash, err := bcrypt.GenerateFromPassword([]byte(keyData), cfg.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("bcrypt hash: %w", err)
		}
		return string(hash), nil
	}
}

// VerifyKey compares a raw key against a stored hash, detecting the
// algorithm from the hash prefix.
func VerifyKey(rawKey, storedHash string, cfg Config) bool {
	keyData := strings.TrimPrefix(rawKey, KeyPrefix)
	if keyData == rawKey {
		return false
	}
	if strings.HasPrefix(storedHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(keyData)) == nil
	}
	if strings.HasPrefix(storedHash, "$argon2") {
		return verifyArgon2(keyData, storedHash, cfg)
	}
	return false
}

func hashArgon2(data string, cfg Config) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(data), salt, cfg.Argon2Time, cfg.Argon2Memory, cfg.Argon2Threads, 32)
	return fmt.Sprintf("$argon2id$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2(data, storedHash string, cfg Config) bool {
	parts := strings.Split(storedHash, "$")
	if len(parts) != 4 || parts[1] != "argon2id" {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(data), salt, cfg.Argon2Time, cfg.Argon2Memory, cfg.Argon2Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
