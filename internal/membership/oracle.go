// Package membership answers whether a user may take part in a project room.
package membership

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"project-chat/internal/cache"
	"project-chat/internal/repositories"
)

// DefaultTTL is how long a membership fact is trusted without a store lookup.
const DefaultTTL = 5 * time.Minute

// Checker is the subset of Oracle the chat handlers depend on.
type Checker interface {
	IsMember(ctx context.Context, userID, roomID string) bool
}

// FailureRecorder counts membership checks denied because the store failed.
type FailureRecorder interface {
	MembershipCheckFailed()
}

// Oracle is a cache-assisted view of the membership store.
type Oracle struct {
	store    repositories.MembershipStore
	cache    *cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
	failures FailureRecorder
	group    singleflight.Group
}

// NewOracle constructs an Oracle. A zero ttl selects DefaultTTL.
func NewOracle(store repositories.MembershipStore, c *cache.Cache, ttl time.Duration, logger *slog.Logger, failures FailureRecorder) *Oracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Oracle{store: store, cache: c, ttl: ttl, logger: logger, failures: failures}
}

// IsMember reports whether userID belongs to roomID. A store error denies
// access and is not cached.
func (o *Oracle) IsMember(ctx context.Context, userID, roomID string) bool {
	if userID == "" || roomID == "" {
		return false
	}

	key := Key(userID, roomID)
	if member, ok := cache.Get[bool](o.cache, key); ok {
		return member
	}

	val, err, _ := o.group.Do(key, func() (any, error) {
		member, err := o.store.IsMember(ctx, userID, roomID)
		if err != nil {
			return false, err
		}
		o.cache.Set(key, member, o.ttl)
		return member, nil
	})
	if err != nil {
		o.logger.Warn("membership check failed, denying", "user_id", userID, "room_id", roomID, "error", err)
		if o.failures != nil {
			o.failures.MembershipCheckFailed()
		}
		return false
	}
	return val.(bool)
}

// Invalidate drops the cached fact so the next check hits the store.
func (o *Oracle) Invalidate(userID, roomID string) {
	o.cache.Delete(Key(userID, roomID))
}

// Key is the cache key of a membership fact.
func Key(userID, roomID string) string {
	return cache.Key(cache.NamespaceMembership, userID, roomID)
}
