package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order lookups and concurrent modification.
var (
	ErrNotFound = errors.New("order not found")
	ErrConflict = errors.New("order was modified concurrently")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// InvalidProductReferenceError lists product ids that do not exist in the
// catalog. No write happens when it is returned.
type InvalidProductReferenceError struct {
	Missing []int64
}

func (e *InvalidProductReferenceError) Error() string {
	return fmt.Sprintf("invalid product reference: products %v not found", e.Missing)
}

// TotalAmountMismatchError reports a client total that differs from the
// catalog total by more than the allowed tolerance.
type TotalAmountMismatchError struct {
	Provided   decimal.Decimal
	Calculated decimal.Decimal
}

func (e *TotalAmountMismatchError) Error() string {
	return fmt.Sprintf("total amount mismatch: provided %s, calculated %s",
		e.Provided.StringFixed(2), e.Calculated.StringFixed(2))
}

// PersistenceError wraps a store failure. The transaction it happened in has
// been rolled back by the time the caller sees it.
type PersistenceError struct {
	Op      string
	OrderID int64
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.OrderID != 0 {
		return fmt.Sprintf("persist order %d: %s: %v", e.OrderID, e.Op, e.Err)
	}
	return fmt.Sprintf("persist order: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// isRejection reports whether err is an expected, client-caused outcome
// rather than a system failure.
func isRejection(err error) bool {
	var (
		ve  *ValidationError
		ipr *InvalidProductReferenceError
		tam *TotalAmountMismatchError
	)
	return errors.As(err, &ve) ||
		errors.As(err, &ipr) ||
		errors.As(err, &tam) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}
