package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed, expired and wrongly signed credentials.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownSubject means the credential verified but names no known user.
	ErrUnknownSubject = errors.New("unknown subject")
)

// Claims is what a validated credential tells us.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenValidator checks a bearer credential and extracts its subject.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (Claims, error)
}

// CustomClaims mirrors the payload minted by the account service.
type CustomClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator verifies HS256 tokens locally.
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator constructs a JWTValidator. An empty issuer disables the
// issuer check.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func (v *JWTValidator) ValidateToken(_ context.Context, tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	out := Claims{Subject: subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
