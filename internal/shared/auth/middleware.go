package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/healthlog/platform/internal/shared/config"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the resolved authenticated user. Only this shape is
// trusted from the identity provider; everything else in the token is
// ignored.
type Identity struct {
	UID           string   `json:"uid"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	IsAnonymous   bool     `json:"is_anonymous"`
	Groups        []string `json:"groups,omitempty"`
}

// Claims extends JWT registered claims with provider-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	IsAnonymous   bool     `json:"is_anonymous"`
	Groups        []string `json:"groups,omitempty"`
}

// Middleware creates JWT bearer authentication middleware.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (interface{}, error) {
				// Development uses a symmetric key; production swaps in
				// the identity provider's public key.
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(*Claims)
			if !ok || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}
			if claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "token missing subject")
				return
			}

			identity := &Identity{
				UID:           claims.Subject,
				Email:         claims.Email,
				EmailVerified: claims.EmailVerified,
				IsAnonymous:   claims.IsAnonymous,
				Groups:        claims.Groups,
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the identity from request context.
func GetIdentity(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return id
}

// WithIdentity returns a context carrying the given identity. Used by
// tests and internal callers that bypass the HTTP middleware.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IsAdmin reports whether the identity passes the admin gate: a
// verified, non-anonymous account on the admin email domain that is a
// member of at least one allowed group.
func (id *Identity) IsAdmin(cfg config.AuthConfig) bool {
	if id == nil || id.IsAnonymous || !id.EmailVerified {
		return false
	}
	if cfg.AdminDomain != "" && !strings.HasSuffix(strings.ToLower(id.Email), strings.ToLower(cfg.AdminDomain)) {
		return false
	}
	for _, allowed := range cfg.AdminGroups {
		for _, g := range id.Groups {
			if g == allowed {
				return true
			}
		}
	}
	return false
}

// RequireAdmin creates middleware that rejects non-admin identities.
// A privileged operation is never partially applied: the check runs
// before the handler sees the request.
func RequireAdmin(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !id.IsAdmin(cfg) {
				writeError(w, http.StatusForbidden, "admin access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireVerified creates middleware that rejects anonymous or
// unverified identities.
func RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := GetIdentity(r.Context())
		if id == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if id.IsAnonymous {
			writeError(w, http.StatusForbidden, "anonymous access not permitted")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
