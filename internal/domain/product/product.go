package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Snapshot is a point-in-time copy of a catalog product. The order service
// only ever reads snapshots for pricing and display and never stores them.
type Snapshot struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Snapshot, error)
	GetByID(ctx context.Context, id int64) (*Snapshot, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Snapshot, error)
}

// Dedup returns ids without duplicates, keeping the first occurrence of each
// id in its original position. The input slice is not modified.
func Dedup(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SameSet reports whether a and b contain the same ids, ignoring order and
// duplicates.
func SameSet(a, b []int64) bool {
	as := make(map[int64]struct{}, len(a))
	for _, id := range a {
		as[id] = struct{}{}
	}
	bs := make(map[int64]struct{}, len(b))
	for _, id := range b {
		if _, ok := as[id]; !ok {
			return false
		}
		bs[id] = struct{}{}
	}
	return len(as) == len(bs)
}
