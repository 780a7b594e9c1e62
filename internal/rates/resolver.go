// Package rates resolves the rate contract in force for a customer at an
// instant.
package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"drayage-billing-backend/internal/model"
	"drayage-billing-backend/internal/store"
)

// ErrNoActiveContract means no contract covers the requested instant. The
// caller treats this as "cannot bill yet", not a failure.
var ErrNoActiveContract = errors.New("no active rate contract")

// Resolver looks up contract versions with a short read-through cache.
// Contract lookups sit on the hot recompute path and contract data changes
// rarely.
type Resolver struct {
	store store.Store
	cache *cache.Cache
	ttl   time.Duration
}

func NewResolver(s store.Store, ttl time.Duration) *Resolver {
	return &Resolver{
		store: s,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Resolve returns the contract whose [effective_from, effective_to) interval
// contains the instant, or ErrNoActiveContract.
func (r *Resolver) Resolve(ctx context.Context, customerID int64, at time.Time) (*model.RateContract, error) {
	key := fmt.Sprintf("%d", customerID)
	if cached, found := r.cache.Get(key); found {
		rc := cached.(*model.RateContract)
		if rc.Covers(at) {
			return rc, nil
		}
		// Cached version does not cover the instant; fall through to the
		// store, which knows every version.
	}

	rc, err := r.store.ContractCovering(ctx, customerID, at)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, fmt.Errorf("customer %d at %s: %w", customerID, at.Format(time.RFC3339), ErrNoActiveContract)
	}

	r.cache.Set(key, rc, r.ttl)
	return rc, nil
}

// Invalidate drops the cached contract for a customer after a contract
// change.
func (r *Resolver) Invalidate(customerID int64) {
	r.cache.Delete(fmt.Sprintf("%d", customerID))
}
