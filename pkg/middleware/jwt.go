package middleware

import (
	"context"
	"net/http"
	"strings"

	"forexhub/internal/user"
	"forexhub/pkg/jwt"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	IsSuperuserKey contextKey = "is_superuser"
)

// JWTAuth rejects requests without a valid bearer token.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := bearerClaims(r, secret)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// OptionalJWTAuth attaches the subject when a valid token is present and
// lets anonymous requests through otherwise.
func OptionalJWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := bearerClaims(r, secret); ok {
				r = r.WithContext(withClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext returns the zero Subject for anonymous requests.
func SubjectFromContext(ctx context.Context) user.Subject {
	id, _ := ctx.Value(UserIDKey).(int64)
	super, _ := ctx.Value(IsSuperuserKey).(bool)
	return user.Subject{ID: id, IsSuperuser: super}
}

func bearerClaims(r *http.Request, secret string) (*jwt.Claims, bool) {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	claims, err := jwt.ParseToken(secret, strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, false
	}
	return claims, true
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, IsSuperuserKey, claims.IsSuperuser)
}
