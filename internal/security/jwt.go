package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the claim set carried by both access and refresh tokens.
// TokenType distinguishes the two so a refresh token can never be replayed
// as an access token or vice versa.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into the account identifier.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func newToken(userID int64, tokenType string, secret []byte, ttl time.Duration, now time.Time, issuer string) (string, error) {
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func NewAccessToken(userID int64, secret []byte, ttl time.Duration, now time.Time, issuer string) (string, error) {
	return newToken(userID, TokenTypeAccess, secret, ttl, now, issuer)
}

func NewRefreshToken(userID int64, secret []byte, ttl time.Duration, now time.Time, issuer string) (string, error) {
	return newToken(userID, TokenTypeRefresh, secret, ttl, now, issuer)
}

// NewTokenPair mints an access/refresh pair for a verified account. Pairs are
// independent across calls; multiple live pairs per account are allowed.
func NewTokenPair(userID int64, secret []byte, accessTTL, refreshTTL time.Duration, now time.Time, issuer string) (*TokenPair, error) {
	access, err := NewAccessToken(userID, secret, accessTTL, now, issuer)
	if err != nil {
		return nil, err
	}
	refresh, err := NewRefreshToken(userID, secret, refreshTTL, now, issuer)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ParseToken verifies the signature and expiry and returns the claims.
// Any failure collapses to ErrInvalidToken.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseTokenOfType additionally enforces the token_type claim.
func ParseTokenOfType(tokenString string, secret []byte, tokenType string) (*Claims, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
