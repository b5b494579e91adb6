package sessions

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"filevault/internal/common"
)

// CachedResolver is a read-through cache in front of an Oracle. Successful
// resolutions are kept in a bounded, expiring LRU so that the store is not
// hit on every request carrying the same token.
//
// Only positive results are cached; a failed resolution always goes back to
// the store on the next request.
type CachedResolver struct {
	oracle *Oracle
	cache  *expirable.LRU[string, string]
}

// NewCachedResolver wraps oracle with an LRU of at most size entries, each
// valid for ttl after caching. The ttl bounds how long a revoked session may
// still resolve from the cache.
func NewCachedResolver(oracle *Oracle, size int, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		oracle: oracle,
		cache:  expirable.NewLRU[string, string](size, nil, ttl),
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", common.ErrUnauthorized
	}

	if userID, ok := r.cache.Get(token); ok {
		return userID, nil
	}

	userID, err := r.oracle.Resolve(ctx, token)
	if err != nil {
		return "", err
	}

	r.cache.Add(token, userID)
	return userID, nil
}

// Revoke invalidates token in both the store and the cache.
func (r *CachedResolver) Revoke(ctx context.Context, token string) error {
	r.cache.Remove(token)
	return r.oracle.Revoke(ctx, token)
}
