// Package catalog defines the read-only contract the order service uses to
// look up products owned by the product service.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

// ErrUnavailable reports a transient failure to reach the catalog. Callers
// may retry the whole operation; readers never retry on their own.
var ErrUnavailable = errors.New("catalog unavailable")

// UnavailableError carries the transport failure behind ErrUnavailable.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) hold for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// ProtocolError reports a catalog response that does not match the expected
// contract. It is not retryable.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog protocol error: %s: %v", e.Reason, e.Err)
	}
	return "catalog protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Reader fetches product snapshots from the catalog.
type Reader interface {
	// FetchOne returns a single product or product.ErrNotFound.
	FetchOne(ctx context.Context, id int64) (*product.Snapshot, error)
	// FetchMany returns the subset of ids that exist, keyed by id. It issues
	// at most one outbound request and none for an empty set.
	FetchMany(ctx context.Context, ids []int64) (map[int64]product.Snapshot, error)
}

// FetchResult splits a batch lookup into found snapshots and missing ids.
type FetchResult struct {
	Found   map[int64]product.Snapshot
	Missing []int64
}

// Reconcile compares the requested ids against what the catalog returned.
// Missing keeps the requested order; snapshots that were not requested are
// dropped.
func Reconcile(requested []int64, found map[int64]product.Snapshot) FetchResult {
	res := FetchResult{Found: make(map[int64]product.Snapshot, len(requested))}
	for _, id := range requested {
		p, ok := found[id]
		if !ok {
			res.Missing = append(res.Missing, id)
			continue
		}
		res.Found[id] = p
	}
	return res
}
