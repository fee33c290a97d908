package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/persianhub/backend/internal/domain/entities"
	"github.com/persianhub/backend/pkg/config"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	cronContextKey contextKey = "cron"
)

// Auth verifies session tokens signed with the auth platform's JWT secret.
// Requests without a token pass through anonymously; Require* decide.
type Auth struct {
	jwtSecret  []byte
	cronSecret string
	adminRole  string
}

// NewAuth creates the auth middleware from configuration
func NewAuth(cfg config.AuthConfig) *Auth {
	role := cfg.AdminRole
	if role == "" {
		role = "admin"
	}
	return &Auth{
		jwtSecret:  []byte(cfg.JWTSecret),
		cronSecret: cfg.CronSecret,
		adminRole:  role,
	}
}

// Middleware attaches the caller to the request context when a valid
// bearer token is present. A token equal to the cron secret carries no user
// and only satisfies RequireCronOrAdmin.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if a.isCronSecret(token) {
			ctx := context.WithValue(r.Context(), cronContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		user, err := a.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireUser rejects anonymous requests
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects callers without the admin or service role
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !user.HasRole(a.adminRole) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCronOrAdmin admits scheduled triggers holding the cron secret as
// well as admins
func (a *Auth) RequireCronOrAdmin(next http.Handler) http.Handler {
	admin := a.RequireAdmin(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cron, _ := r.Context().Value(cronContextKey).(bool); cron {
			next.ServeHTTP(w, r)
			return
		}
		admin.ServeHTTP(w, r)
	})
}

func (a *Auth) isCronSecret(token string) bool {
	return a.cronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(a.cronSecret)) == 1
}

// ParseToken verifies an HMAC-signed session token and returns its user.
// The role is read from app_metadata.role when present, else from the
// top-level role claim.
func (a *Auth) ParseToken(token string) (*entities.User, error) {
	if len(a.jwtSecret) == 0 {
		return nil, fmt.Errorf("jwt secret not configured")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	user := &entities.User{
		ID:    stringClaim(claims, "sub"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			user.Role = role
		}
	}
	if user.ID == "" {
		return nil, fmt.Errorf("jwt missing subject")
	}
	return user, nil
}

// WithUser stores the authenticated user in ctx
func WithUser(ctx context.Context, user *entities.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user or nil
func UserFromContext(ctx context.Context) *entities.User {
	user, _ := ctx.Value(userContextKey).(*entities.User)
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
