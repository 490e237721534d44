// Package auth resolves connection credentials to user identities.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"project-chat/internal/cache"
	"project-chat/internal/models"
	"project-chat/internal/repositories"
)

// DefaultIdentityTTL bounds how long a resolved identity is reused.
const DefaultIdentityTTL = 5 * time.Minute

// IdentityResolver is the subset of Verifier used by the transport layer.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (models.Identity, error)
}

// Verifier turns a bearer credential into an Identity, memoizing results in
// the fact cache.
type Verifier struct {
	validator TokenValidator
	users     repositories.IdentityStore
	cache     *cache.Cache
	ttl       time.Duration
	now       func() time.Time
	group     singleflight.Group
}

// NewVerifier constructs a Verifier. A zero ttl selects DefaultIdentityTTL.
func NewVerifier(validator TokenValidator, users repositories.IdentityStore, c *cache.Cache, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	return &Verifier{validator: validator, users: users, cache: c, ttl: ttl, now: time.Now}
}

// ResolveIdentity returns the identity behind token. Errors wrap
// ErrInvalidToken or ErrUnknownSubject when the credential itself is at
// fault; any other error is a collaborator failure.
func (v *Verifier) ResolveIdentity(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, fmt.Errorf("%w: empty credential", ErrInvalidToken)
	}

	key := IdentityKey(token)
	if identity, ok := cache.Get[models.Identity](v.cache, key); ok {
		return identity, nil
	}

	val, err, _ := v.group.Do(key, func() (any, error) {
		claims, err := v.validator.ValidateToken(ctx, token)
		if err != nil {
			return models.Identity{}, err
		}

		identity, err := v.users.FindByID(ctx, claims.Subject)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return models.Identity{}, fmt.Errorf("%w: %s", ErrUnknownSubject, claims.Subject)
		}
		if err != nil {
			return models.Identity{}, fmt.Errorf("find user %s: %w", claims.Subject, err)
		}

		ttl := v.ttl
		if !claims.ExpiresAt.IsZero() {
			ttl = min(ttl, claims.ExpiresAt.Sub(v.now()))
		}
		v.cache.Set(key, identity, ttl)
		return identity, nil
	})
	if err != nil {
		return models.Identity{}, err
	}
	return val.(models.Identity), nil
}

// IsCredentialError reports whether err is the caller's fault rather than a
// collaborator outage.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnknownSubject)
}

// IdentityKey is the cache key of a credential. The raw token is never stored.
func IdentityKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return cache.Key(cache.NamespaceIdentity, hex.EncodeToString(sum[:]))
}
