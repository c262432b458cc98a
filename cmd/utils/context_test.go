package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signClaims(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParseTokenRoundTrip(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "secret", &Claims{
		ID:   42,
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.ID)
	assert.Equal(t, "user", claims.Role)
}

func TestParseTokenExpired(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "secret", &Claims{
		ID:   42,
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := a.ParseToken(token)
	require.Error(t, err)
	assert.Equal(t, "Access token expired! Login again!", err.Error())
}

func TestParseTokenWrongSecret(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "other-secret", &Claims{
		ID:   42,
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := a.ParseToken(token)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestMiddlewareRejectsRefreshToken(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "secret", &Claims{
		ID:        42,
		Role:      "user",
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	called := false
	handler := a.Middleware(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/base-user/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareSetsContext(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "secret", &Claims{
		ID:   7,
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	handler := a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r.Context())
		require.NoError(t, err)
		assert.Equal(t, uint(7), id)
		assert.Equal(t, "admin", GetRole(r.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/base-user/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	a := NewAuthenticator("secret")
	token := signClaims(t, "secret", &Claims{
		ID:   7,
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	handler := a.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
