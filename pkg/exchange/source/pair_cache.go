package source

import (
	"context"
	"time"

	"github.com/amirasaad/fxrate/pkg/currency"
	"github.com/amirasaad/fxrate/pkg/exchange/core"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PairCache stores quotes fetched on demand. Entries expire after a TTL
// fixed by the implementation.
type PairCache interface {
	Get(ctx context.Context, from, to currency.Code) (core.Quote, bool, error)
	Set(ctx context.Context, from, to currency.Code, q core.Quote) error
}

// PairKey identifies one cached pair.
type PairKey struct {
	From currency.Code
	To   currency.Code
}

func (k PairKey) String() string {
	return string(k.From) + "/" + string(k.To)
}

// MemoryPairCache is a size bounded LRU whose entries expire after a TTL.
type MemoryPairCache struct {
	lru *expirable.LRU[PairKey, core.Quote]
}

// NewMemoryPairCache creates an in-memory pair cache.
func NewMemoryPairCache(size int, ttl time.Duration) *MemoryPairCache {
	if size <= 0 {
		size = DefaultPairCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultPairCacheTTL
	}
	return &MemoryPairCache{lru: expirable.NewLRU[PairKey, core.Quote](size, nil, ttl)}
}

func (c *MemoryPairCache) Get(_ context.Context, from, to currency.Code) (core.Quote, bool, error) {
	q, ok := c.lru.Get(PairKey{From: from, To: to})
	return q, ok, nil
}

func (c *MemoryPairCache) Set(_ context.Context, from, to currency.Code, q core.Quote) error {
	c.lru.Add(PairKey{From: from, To: to}, q)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryPairCache) Len() int {
	return c.lru.Len()
}
