// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package tiny

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sigil-dev/balcao/internal/catalog"
)

// DefaultStockTTL is how long a successful stock answer is reused.
const DefaultStockTTL = 2 * time.Minute

// CachedStock memoises successful stock lookups for a short TTL. Failures
// are never cached.
type CachedStock struct {
	next  catalog.StockLookup
	cache *cache.Cache
}

var _ catalog.StockLookup = (*CachedStock)(nil)

func NewCachedStock(next catalog.StockLookup, ttl time.Duration) *CachedStock {
	if ttl <= 0 {
		ttl = DefaultStockTTL
	}
	return &CachedStock{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *CachedStock) Stock(ctx context.Context, productID string) (catalog.Stock, error) {
	if x, found := c.cache.Get(productID); found {
		return x.(catalog.Stock), nil
	}

	stock, err := c.next.Stock(ctx, productID)
	if err != nil {
		return stock, err
	}
	c.cache.Set(productID, stock, cache.DefaultExpiration)
	return stock, nil
}

// Len reports the number of cached entries, including expired ones not yet purged.
func (c *CachedStock) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every cached entry.
func (c *CachedStock) Flush() {
	c.cache.Flush()
}
