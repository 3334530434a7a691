// Package auth verifies bearer tokens issued by the identity provider and
// exposes the caller identity to request handlers. Tokens are HS256 JWTs whose
// subject claim carries the user id; issuing tokens is the provider's job,
// this package only validates them.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when no valid identity accompanies a request.
var ErrUnauthenticated = errors.New("user not authenticated")

type contextKey struct{}

// Verifier validates bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// UserID extracts and validates the subject of a bearer token.
func (v *Verifier) UserID(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthenticated
	}
	return sub, nil
}

// Middleware rejects requests without a valid Authorization header and stores
// the user id in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.UserID(bearerToken(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying the caller identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFrom returns the caller identity stored by Middleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
