package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestUserID(t *testing.T) {
	secret := []byte("secret")
	v := NewVerifier(secret)

	userID, err := v.UserID(signToken(t, secret, "user-42"))
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestUserIDRejectsWrongSecret(t *testing.T) {
	v := NewVerifier([]byte("secret"))
	_, err := v.UserID(signToken(t, []byte("other"), "user-42"))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserIDRejectsExpiredToken(t *testing.T) {
	secret := []byte("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = NewVerifier(secret).UserID(token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserIDRejectsEmptySubject(t *testing.T) {
	secret := []byte("secret")
	_, err := NewVerifier(secret).UserID(signToken(t, secret, ""))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	secret := []byte("secret")
	v := NewVerifier(secret)
	var seen string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, secret, "user-7"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-7", seen)

	// Missing header is rejected before the wrapped handler runs.
	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, seen)
}
