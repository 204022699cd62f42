// Package payload resolves task payloads in batches, caching hot entries.
// Payloads are content-addressed and immutable, so cached entries never go
// stale.
package payload

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MatweyL/Potok/internal/domain"
)

// Reader is the store lookup behind the resolver.
type Reader interface {
	GetPayloads(ctx context.Context, ids []int64) (map[int64]domain.Payload, error)
}

// Resolver batches payload lookups for the materializer.
type Resolver struct {
	reader Reader
	cache  *lru.Cache[int64, domain.Payload]
}

// NewResolver builds a resolver with an LRU cache of the given size.
func NewResolver(reader Reader, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[int64, domain.Payload](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("payload cache: %w", err)
	}
	return &Resolver{reader: reader, cache: cache}, nil
}

// Resolve returns payloads keyed by id, fetching cache misses in one batched
// store lookup. Unknown ids are absent from the result.
func (r *Resolver) Resolve(ctx context.Context, ids []int64) (map[int64]domain.Payload, error) {
	result := make(map[int64]domain.Payload, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	var misses []int64
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if payload, ok := r.cache.Get(id); ok {
			result[id] = payload
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := r.reader.GetPayloads(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("resolve payloads: %w", err)
	}
	for id, payload := range fetched {
		r.cache.Add(id, payload)
		result[id] = payload
	}
	return result, nil
}
