// Package pricing validates a set of product references against the catalog
// and prices them.
package pricing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/ecommerce-orders/internal/domain/catalog"
	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

// ProductsNotFoundError lists every requested id the catalog did not return.
type ProductsNotFoundError struct {
	Missing []int64
}

func (e *ProductsNotFoundError) Error() string {
	return fmt.Sprintf("products not found: %v", e.Missing)
}

// Quote is the outcome of a successful pricing run.
type Quote struct {
	// Total is the exact sum of unit prices rounded to currency precision.
	Total decimal.Decimal
	// Products holds one snapshot per distinct requested id, in request order.
	Products []product.Snapshot
}

// Engine prices product references using a single batched catalog lookup.
type Engine struct {
	catalog catalog.Reader
}

// NewEngine creates an Engine backed by the given catalog reader.
func NewEngine(r catalog.Reader) *Engine {
	return &Engine{catalog: r}
}

// PriceAndValidate deduplicates ids, fetches them in one batch and sums their
// prices. If any id is absent from the catalog it returns
// *ProductsNotFoundError carrying all of them and no total.
func (e *Engine) PriceAndValidate(ctx context.Context, ids []int64) (*Quote, error) {
	requested := product.Dedup(ids)

	// Non-positive ids can never name a catalog product, so they are
	// reported as missing without a lookup.
	lookup := make([]int64, 0, len(requested))
	for _, id := range requested {
		if id > 0 {
			lookup = append(lookup, id)
		}
	}

	found := map[int64]product.Snapshot{}
	if len(lookup) > 0 {
		var err error
		found, err = e.catalog.FetchMany(ctx, lookup)
		if err != nil {
			return nil, errors.Wrap(err, "fetch products")
		}
	}

	res := catalog.Reconcile(requested, found)
	if len(res.Missing) > 0 {
		return nil, &ProductsNotFoundError{Missing: res.Missing}
	}

	total := decimal.Zero
	products := make([]product.Snapshot, 0, len(requested))
	for _, id := range requested {
		p := res.Found[id]
		total = total.Add(p.Price)
		products = append(products, p)
	}

	return &Quote{
		Total:    total.Round(2),
		Products: products,
	}, nil
}
