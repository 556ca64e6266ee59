package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/rdcredit/internal/review"
)

func bcryptConfig() Config {
	return Config{HashAlgorithm: "bcrypt", BcryptCost: 4}
}

func argon2Config() Config {
	return Config{HashAlgorithm: "argon2", Argon2Time: 1, Argon2Memory: 8 * 1024, Argon2Threads: 1}
}

func TestHashAndVerifyBcrypt(t *testing.T) {
	cfg := bcryptConfig()
	hash, err := HashKey("rdc_secret", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyKey("rdc_secret", hash, cfg) {
		t.Fatal("correct key should verify")
	}
	if VerifyKey("rdc_wrong", hash, cfg) {
		t.Fatal("wrong key must not verify")
	}
}

func TestHashAndVerifyArgon2(t *testing.T) {
	cfg := argon2Config()
	hash, err := HashKey("rdc_secret", cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format %q", hash)
	}
	if !VerifyKey("rdc_secret", hash, cfg) {
		t.Fatal("correct key should verify")
	}
	if VerifyKey("rdc_wrong", hash, cfg) {
		t.Fatal("wrong key must not verify")
	}
}

func TestHashKeyRequiresPrefix(t *testing.T) {
	if _, err := HashKey("noprefix", bcryptConfig()); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
	if VerifyKey("noprefix", "$2whatever", bcryptConfig()) {
		t.Fatal("unprefixed key must not verify")
	}
}

func TestGenerateAPIKeyRoundTrip(t *testing.T) {
	raw, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(raw, KeyPrefix) {
		t.Fatalf("key %q missing prefix", raw)
	}
	cfg := bcryptConfig()
	hash, err := HashKey(raw, cfg)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyKey(raw, hash, cfg) {
		t.Fatal("generated key should verify against its own hash")
	}
}

func TestSeedFromConfig(t *testing.T) {
	cfg := bcryptConfig()
	cfg.SeedKeys = "ci:analyst:rdc_one, lead:DIRECTOR:rdc_two"
	store := NewInMemoryStore(cfg)
	if err := store.SeedFromConfig(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	key, err := store.ValidateKey(context.Background(), "rdc_one")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if key.Name != "ci" || key.Role != review.RoleAnalyst {
		t.Fatalf("unexpected key %+v", key)
	}

	key, err = store.ValidateKey(context.Background(), "rdc_two")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if key.Role != review.RoleDirector {
		t.Fatalf("expected director role, got %s", key.Role)
	}

	if _, err := store.ValidateKey(context.Background(), "rdc_nope"); !errors.Is(err, ErrInvalidAPIKey) {
		t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
	}
}

func TestSeedFromConfigFailsClosed(t *testing.T) {
	store := NewInMemoryStore(bcryptConfig())
	if err := store.SeedFromConfig(); err == nil {
		t.Fatal("empty seed config must be an error")
	}

	cfg := bcryptConfig()
	cfg.SeedKeys = "malformed-entry"
	store = NewInMemoryStore(cfg)
	if err := store.SeedFromConfig(); err == nil {
		t.Fatal("malformed triple must be an error")
	}
}

func TestValidateKeyExpiryAndRevocation(t *testing.T) {
	cfg := bcryptConfig()
	store := NewInMemoryStore(cfg)

	expired, err := store.AddKey("old", review.RoleAnalyst, "rdc_old")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	expired.ExpiresAt = &past
	if _, err := store.ValidateKey(context.Background(), "rdc_old"); !errors.Is(err, ErrKeyExpired) {
		t.Fatalf("expected ErrKeyExpired, got %v", err)
	}

	revoked, err := store.AddKey("gone", review.RoleAnalyst, "rdc_gone")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	now := time.Now()
	revoked.RevokedAt = &now
	if _, err := store.ValidateKey(context.Background(), "rdc_gone"); !errors.Is(err, ErrKeyRevoked) {
		t.Fatalf("expected ErrKeyRevoked, got %v", err)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.nowFunc = func() time.Time { return now }

	if ok, _ := rl.Allow("k1"); !ok {
		t.Fatal("first request should pass")
	}
	if ok, _ := rl.Allow("k1"); !ok {
		t.Fatal("second request should pass")
	}
	ok, retryAfter := rl.Allow("k1")
	if ok {
		t.Fatal("third request should be limited")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("unexpected retry-after %v", retryAfter)
	}

	// other keys are unaffected
	if ok, _ := rl.Allow("k2"); !ok {
		t.Fatal("different key should pass")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := rl.Allow("k1"); !ok {
		t.Fatal("window reset should admit again")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if ok, _ := rl.Allow("k1"); !ok {
			t.Fatal("zero limit disables limiting")
		}
	}
}
