package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/mridulsharma03/snapnet-server/cmd/config"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

const refreshTokenType = "refresh"

// TokenService signs and verifies the three token shapes the API uses:
// access, refresh and the short-lived OTP verification token.
type TokenService struct {
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	otpTokenTTL time.Duration
}

func NewTokenService(cfg *config.Config) *TokenService {
	return &TokenService{
		secret:      []byte(cfg.JWTSecret),
		accessTTL:   cfg.AccessTTL,
		refreshTTL:  cfg.RefreshTTL,
		otpTokenTTL: cfg.OtpTokenTTL,
	}
}

func (s *TokenService) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) IssueAccess(id uint, role string) (string, error) {
	return s.sign(&utils.Claims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

func (s *TokenService) IssueRefresh(id uint, role string) (string, error) {
	return s.sign(&utils.Claims{
		ID:        id,
		Role:      role,
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.refreshTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// ParseRefresh validates a refresh token; access tokens are rejected here.
func (s *TokenService) ParseRefresh(tokenString string) (*utils.Claims, error) {
	claims := &utils.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, utils.Unauthorized("Refresh token expired! Login again!")
		}
		return nil, utils.Unauthorized("Invalid Credentials!")
	}
	if !token.Valid || claims.TokenType != refreshTokenType || claims.ID == 0 || claims.Role == "" {
		return nil, utils.Unauthorized("Invalid Credentials!")
	}
	return claims, nil
}

// otpClaims embeds the identity and the issued code so the reset step can
// check the token against the stored OTP row.
type otpClaims struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	jwt.RegisteredClaims
}

func (s *TokenService) IssueOtpToken(id uint, code string) (string, error) {
	return s.sign(&otpClaims{
		ID:   id,
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.otpTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// ParseOtpToken returns distinct error kinds for the three failure modes:
// expired token (400), bad signature (401), malformed shape (400).
func (s *TokenService) ParseOtpToken(tokenString string) (id uint, code string, err error) {
	claims := &otpClaims{}
	token, parseErr := jwt.ParseWithClaims(tokenString, claims, s.keyFunc)
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return 0, "", utils.BadRequest("Otp expired! Generate new otp!")
		}
		if errors.Is(parseErr, jwt.ErrTokenSignatureInvalid) {
			return 0, "", utils.Unauthorized("Invalid Credentials!")
		}
		return 0, "", utils.BadRequest("Invalid reset token!")
	}
	if !token.Valid || claims.ID == 0 || claims.Code == "" {
		return 0, "", utils.BadRequest("Invalid reset token!")
	}
	return claims.ID, claims.Code, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return s.secret, nil
}
