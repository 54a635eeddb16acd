// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package catalog

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultStockConcurrency bounds parallel stock lookups when none is configured.
const DefaultStockConcurrency = 4

// EnrichStock fills the Stock field of every product using lookup. Lookups run
// concurrently, at most concurrency at a time. A failed lookup leaves that
// item's stock unknown; the call itself only fails when ctx is cancelled.
// The input slice is not modified.
func EnrichStock(ctx context.Context, products []Product, lookup StockLookup, concurrency int) ([]Product, error) {
	out := make([]Product, len(products))
	copy(out, products)
	if lookup == nil || len(out) == 0 {
		return out, nil
	}
	if concurrency <= 0 {
		concurrency = DefaultStockConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range out {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stock, err := lookup.Stock(gctx, out[i].ID)
			if err != nil {
				slog.Warn("stock lookup failed",
					"product_id", out[i].ID,
					"error", err,
				)
				out[i].Stock = StockUnknown()
				return nil
			}
			out[i].Stock = stock
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return products, err
	}
	return out, nil
}
