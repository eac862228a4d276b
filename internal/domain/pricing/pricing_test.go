package pricing

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/ecommerce-orders/internal/domain/catalog"
	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

// --- Mock implementations ---

type mockCatalog struct {
	byID    map[int64]product.Snapshot
	err     error
	calls   int
	lastReq []int64
}

func (m *mockCatalog) FetchOne(_ context.Context, id int64) (*product.Snapshot, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalog) FetchMany(_ context.Context, ids []int64) (map[int64]product.Snapshot, error) {
	m.calls++
	m.lastReq = ids
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]product.Snapshot)
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// --- Helpers ---

func newCatalog(products ...product.Snapshot) *mockCatalog {
	byID := make(map[int64]product.Snapshot, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &mockCatalog{byID: byID}
}

func snapshot(id int64, price string) product.Snapshot {
	return product.Snapshot{ID: id, Name: "product", Price: decimal.RequireFromString(price)}
}

// --- Tests ---

func TestPriceAndValidate_ExactDecimalSum(t *testing.T) {
	cat := newCatalog(snapshot(1, "19.99"), snapshot(2, "5.00"), snapshot(3, "0.01"))
	engine := NewEngine(cat)

	quote, err := engine.PriceAndValidate(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, "25.00", quote.Total.StringFixed(2))
	assert.True(t, decimal.RequireFromString("25").Equal(quote.Total))
}

func TestPriceAndValidate_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 is the classic float64 drift case.
	cat := newCatalog(snapshot(1, "0.10"), snapshot(2, "0.20"))
	engine := NewEngine(cat)

	quote, err := engine.PriceAndValidate(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.30").Equal(quote.Total))
}

func TestPriceAndValidate_DeduplicatesBeforeFetch(t *testing.T) {
	cat := newCatalog(snapshot(1, "10.00"), snapshot(2, "2.50"))
	engine := NewEngine(cat)

	quote, err := engine.PriceAndValidate(context.Background(), []int64{2, 1, 2, 1})
	require.NoError(t, err)

	assert.Equal(t, 1, cat.calls, "one batch call for the whole set")
	assert.Equal(t, []int64{2, 1}, cat.lastReq)
	assert.True(t, decimal.RequireFromString("12.50").Equal(quote.Total), "duplicates are priced once")
	require.Len(t, quote.Products, 2)
	assert.Equal(t, int64(2), quote.Products[0].ID)
	assert.Equal(t, int64(1), quote.Products[1].ID)
}

func TestPriceAndValidate_ReportsAllMissing(t *testing.T) {
	cat := newCatalog(snapshot(1, "10.00"))
	engine := NewEngine(cat)

	quote, err := engine.PriceAndValidate(context.Background(), []int64{7, 1, 8, 7})
	require.Error(t, err)
	assert.Nil(t, quote)

	var pnf *ProductsNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, []int64{7, 8}, pnf.Missing)
	assert.Equal(t, 1, cat.calls)
}

func TestPriceAndValidate_CatalogUnavailable(t *testing.T) {
	cat := newCatalog()
	cat.err = &catalog.UnavailableError{Err: errors.New("connection refused")}
	engine := NewEngine(cat)

	_, err := engine.PriceAndValidate(context.Background(), []int64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)

	var pnf *ProductsNotFoundError
	assert.False(t, errors.As(err, &pnf))
}

func TestPriceAndValidate_ProtocolError(t *testing.T) {
	cat := newCatalog()
	cat.err = &catalog.ProtocolError{Reason: "bad json"}
	engine := NewEngine(cat)

	_, err := engine.PriceAndValidate(context.Background(), []int64{1})

	var pe *catalog.ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestPriceAndValidate_RoundsToCurrencyPrecision(t *testing.T) {
	cat := newCatalog(snapshot(1, "0.333"), snapshot(2, "0.333"))
	engine := NewEngine(cat)

	quote, err := engine.PriceAndValidate(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "0.67", quote.Total.String())
}

func TestPriceAndValidate_NonPositiveIDsAreMissing(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int64
		missing []int64
		calls   int
		lookup  []int64
	}{
		{name: "zero only", ids: []int64{0}, missing: []int64{0}, calls: 0},
		{name: "negative only", ids: []int64{-5, -5}, missing: []int64{-5}, calls: 0},
		{name: "mixed", ids: []int64{1, -5}, missing: []int64{-5}, calls: 1, lookup: []int64{1}},
		{name: "mixed with unknown", ids: []int64{0, 1, 9}, missing: []int64{0, 9}, calls: 1, lookup: []int64{1, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := newCatalog(snapshot(1, "10.00"))
			engine := NewEngine(cat)

			_, err := engine.PriceAndValidate(context.Background(), tt.ids)

			var pnf *ProductsNotFoundError
			require.ErrorAs(t, err, &pnf)
			assert.Equal(t, tt.missing, pnf.Missing)
			assert.Equal(t, tt.calls, cat.calls)
			if tt.calls > 0 {
				assert.Equal(t, tt.lookup, cat.lastReq, "only positive ids reach the catalog")
			}
		})
	}
}
