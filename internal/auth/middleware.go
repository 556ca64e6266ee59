package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/rdcredit/internal/review"
)

type authError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	CorrID  string `json:"corrId"`
}

// Middleware authenticates every request with an API key from the
// Authorization bearer header or X-API-Key, and attaches the actor and a
// correlation ID to the context.
func Middleware(store Store, limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-Id")
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-Id", corrID)

			rawKey := extractAPIKey(r)
			if rawKey == "" {
				writeAuthError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "API key required", corrID)
				return
			}

			key, err := store.ValidateKey(r.Context(), rawKey)
			if err != nil {
				code, status := classifyAuthError(err)
				logger.Warn("authentication failed", "corrId", corrID, "code", code)
				writeAuthError(w, status, code, err.Error(), corrID)
				return
			}

			if ok, _ := limiter.Allow(key.ID); !ok {
				writeAuthError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", corrID)
				return
			}

			actor := &Actor{KeyID: key.ID, KeyName: key.Name, Role: key.Role}
			ctx := ContextWithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a handler on the reviewer-role hierarchy: the actor's
// role level must reach the minimum's level.
func RequireRole(minimum review.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "AUTH_REQUIRED", "no authenticated actor", r.Header.Get("X-Correlation-Id"))
				return
			}
			if !roleAtLeast(actor.Role, minimum) {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", r.Header.Get("X-Correlation-Id"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func roleAtLeast(have, want review.Role) bool {
	switch want {
	case review.RoleAnalyst:
		return true
	case review.RoleReviewer, review.RoleTaxManager:
		return review.CanApproveReject(have)
	case review.RoleDirector, review.RolePartner:
		return review.CanOverride(have)
	case review.RoleAdmin:
		return have == review.RoleAdmin
	}
	return false
}

func extractAPIKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
	}
	return r.Header.Get("X-API-Key")
}

func classifyAuthError(err error) (string, int) {
	switch {
	case errors.Is(err, ErrKeyExpired):
		return "KEY_EXPIRED", http.StatusUnauthorized
	case errors.Is(err, ErrKeyRevoked):
		return "KEY_REVOKED", http.StatusUnauthorized
	default:
		return "INVALID_KEY", http.StatusUnauthorized
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, message, corrID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authError{Code: code, Message: message, CorrID: corrID})
}
