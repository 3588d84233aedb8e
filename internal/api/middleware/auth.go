package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maumercado/task-queue-go/internal/apperr"
	"github.com/maumercado/task-queue-go/internal/tenant"
)

type contextKey string

const (
	QueueContextKey contextKey = "queue"
	UserContextKey  contextKey = "user"
)

// Claims represents the JWT claims read by DevJWT. The router does not
// mount DevJWT, so no served route checks these claims.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// BasicAuth authenticates every request against the stored queue
// credentials (§6 "Authentication") and stores the resolved queue in the
// request context under QueueContextKey, making "/me" routes resolvable
// without re-reading the header downstream.
func BasicAuth(svc *tenant.Service) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, password, ok := r.BasicAuth()
			if !ok {
				writeUnauthorized(w, "missing basic auth credentials")
				return
			}

			q, err := svc.Authenticate(r.Context(), name, password)
			if err != nil {
				writeUnauthorized(w, "invalid queue name or password")
				return
			}

			ctx := context.WithValue(r.Context(), QueueContextKey, q)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="taskqueue"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"detail":"` + detail + `"}`))
}

// QueueFromContext retrieves the authenticated queue stored by BasicAuth.
func QueueFromContext(ctx context.Context) *tenant.Queue {
	q, _ := ctx.Value(QueueContextKey).(*tenant.Queue)
	return q
}

// DevJWTConfig holds the dev-only JWT configuration for admin routes.
type DevJWTConfig struct {
	Enabled   bool
	JWTSecret string
}

// DevJWT requires a bearer JWT on every request and answers 404 for all
// requests when cfg.Enabled is false. It does not read
// ALLOW_UNSAFE_BEHAVIOR, and the router does not mount it: the worker reset
// route is guarded by BasicAuth only. Kept in the teacher's original JWT
// shape since it's orthogonal to queue Basic-auth.
func DevJWT(cfg *DevJWTConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}

			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" || tokenString == authHeader {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser retrieves user claims from context.
func GetUser(ctx context.Context) *Claims {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// KindToStatus maps an apperr.Kind to the HTTP status §7 assigns it.
func KindToStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidStateTransition, apperr.KindQueueExists, apperr.KindQueueNotEmpty, apperr.KindWorkerNotAvailable:
		return http.StatusConflict
	case apperr.KindStoreTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
