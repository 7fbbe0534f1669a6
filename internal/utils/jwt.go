package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// Tokens signs and validates access and refresh tokens
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokens creates a token issuer with the given HMAC secret
func NewTokens(secret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL is the lifetime of access tokens
func (t *Tokens) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL is the lifetime of refresh tokens
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *Tokens) generate(userID, email, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Type:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// GenerateToken generates an access token for a user
func (t *Tokens) GenerateToken(userID, email string) (string, error) {
	return t.generate(userID, email, TokenTypeAccess, t.accessTTL)
}

// GenerateRefreshToken generates a refresh token for a user
func (t *Tokens) GenerateRefreshToken(userID, email string) (string, error) {
	return t.generate(userID, email, TokenTypeRefresh, t.refreshTTL)
}

// ValidateToken validates and parses a JWT token of the expected type
func (t *Tokens) ValidateToken(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	if claims.Type != kind {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
