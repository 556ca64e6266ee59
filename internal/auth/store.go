package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/rdcredit/internal/review"
)

// InMemoryStore holds the configured API keys hashed at startup.
type InMemoryStore struct {
	mu   sync.RWMutex
	cfg  Config
	keys map[string]*APIKey // keyID -> APIKey
}

func NewInMemoryStore(cfg Config) *InMemoryStore {
	return &InMemoryStore{cfg: cfg, keys: map[string]*APIKey{}}
}

// SeedFromConfig loads "name:role:rawkey" triples from the config. It fails
// closed: a malformed triple is an error, not a silently open server.
func (s *InMemoryStore) SeedFromConfig() error {
	if strings.TrimSpace(s.cfg.SeedKeys) == "" {
		return fmt.Errorf("no API keys configured (AUTH_API_KEYS)")
	}
	for _, triple := range strings.Split(s.cfg.SeedKeys, ",") {
		triple = strings.TrimSpace(triple)
		if triple == "" {
			continue
		}
		parts := strings.SplitN(triple, ":", 3)
		if len(parts) != 3 {
			return fmt.Errorf("malformed API key entry %q, want name:role:key", triple)
		}
		if _, err := s.AddKey(parts[0], review.Role(strings.ToUpper(parts[1])), parts[2]); err != nil {
			return err
		}
	}
	return nil
}

// AddKey hashes and registers one raw key.
func (s *InMemoryStore) AddKey(name string, role review.Role, rawKey string) (*APIKey, error) {
	hash, err := HashKey(rawKey, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("key %q: %w", name, err)
	}
	key := &APIKey{
		ID:        uuid.New().String(),
		Name:      name,
		Role:      role,
		KeyHash:   hash,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.keys[key.ID] = key
	s.mu.Unlock()
	return key, nil
}

func (s *InMemoryStore) ValidateKey(_ context.Context, rawKey string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.keys {
		if !VerifyKey(rawKey, key.KeyHash, s.cfg) {
			continue
		}
		if key.RevokedAt != nil {
			return nil, ErrKeyRevoked
		}
		if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
			return nil, ErrKeyExpired
		}
		return key, nil
	}
	return nil, ErrInvalidAPIKey
}

var _ Store = (*InMemoryStore)(nil)
