package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"wink/internal/domain/auth"
	"wink/internal/transport/http/api"
)

// SessionChecker confirms a token's session has not been revoked.
type SessionChecker interface {
	SessionValid(ctx context.Context, userID, sessionHash string) (bool, error)
}

// Auth attaches the bearer token's user to the context. Requests without a
// valid token pass through anonymously; RequireAuth rejects them later.
func Auth(secret string, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if sessions != nil && claims.SessionID != "" {
				valid, err := sessions.SessionValid(r.Context(), claims.UserID, auth.HashToken(claims.SessionID))
				if err != nil {
					slog.Warn("session check failed", "userId", claims.UserID, "err", err)
				}
				if err != nil || !valid {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, auth.UserContext{
				UserID:    claims.UserID,
				Role:      claims.Role,
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser places a user on the context the way Auth does.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
