package utils

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"
)

// Claims is the payload of every token this service signs: identity, role
// and the registered expiry.
type Claims struct {
	ID   uint   `json:"id"`
	Role string `json:"role"`
	// TokenType distinguishes refresh tokens from access tokens so one
	// cannot stand in for the other.
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

func GetUserID(ctx context.Context) (uint, error) {
	id, ok := ctx.Value(UserIDKey).(uint)
	if !ok {
		return 0, errors.New("user ID not found in context")
	}
	return id, nil
}

func GetRole(ctx context.Context) string {
	role, _ := ctx.Value(RoleKey).(string)
	return role
}

// Authenticator validates bearer tokens and stashes the identity claims in
// the request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// ParseToken validates a signed token and checks the required claims are
// present. Expired tokens get their own message.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, Unauthorized("Access token expired! Login again!")
		}
		return nil, Unauthorized("Invalid Credentials!")
	}
	if !token.Valid || claims.ID == 0 || claims.Role == "" || claims.ExpiresAt == nil {
		return nil, Unauthorized("Invalid authentication credentials")
	}
	return claims, nil
}

// Middleware guards a route with bearer-token auth.
func (a *Authenticator) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			WriteError(w, Unauthorized("Authorization header required"))
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := a.ParseToken(tokenString)
		if err != nil {
			WriteError(w, err)
			return
		}
		if claims.TokenType != "" {
			WriteError(w, Unauthorized("Invalid Credentials!"))
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.ID)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin guards a route with auth plus an admin-role check.
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r.Context()) != "admin" {
			WriteError(w, Forbidden("You don't have permission!"))
			return
		}
		next(w, r)
	})
}
