// Package auth provides API-key authentication for the decision API. Key and
// role management is external; this package only validates configured keys
// and attaches the caller's identity to the request context.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/rdcredit/internal/review"
)

var (
	ErrAPIKeyRequired = errors.New("API key required")
	ErrInvalidAPIKey  = errors.New("invalid API key")
	ErrKeyExpired     = errors.New("API key expired")
	ErrKeyRevoked     = errors.New("API key revoked")
)

// APIKey is a configured credential. The raw key is never stored.
type APIKey struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      review.Role `json:"role"`
	KeyHash   string      `json:"-"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	RevokedAt *time.Time  `json:"revokedAt,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Actor is the authenticated caller attached to the request context.
type Actor struct {
	KeyID   string      `json:"keyId"`
	KeyName string      `json:"keyName"`
	Role    review.Role `json:"role"`
}

// Store validates raw keys against the configured set.
type Store interface {
	ValidateKey(ctx context.Context, rawKey string) (*APIKey, error)
}

type actorContextKey struct{}

// ContextWithActor attaches the actor to the context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from the context.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(*Actor)
	return actor, ok
}
