package order

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

const (
	maxCustomerNameLen = 100
	maxAddressLen      = 200

	// DefaultMaxProductIDs matches the default batch limit of the product
	// service, so that every accepted order can be priced in one lookup.
	DefaultMaxProductIDs = 100
)

// Order is a customer order referencing products owned by the catalog.
type Order struct {
	ID           int64
	CustomerName string
	Address      string
	// ProductIDs is deduplicated and keeps first-seen order.
	ProductIDs  []int64
	TotalAmount decimal.Decimal
	OrderDate   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Details is an order together with the catalog snapshots it references.
type Details struct {
	Order    *Order
	Products []product.Snapshot
}

// CreateRequest holds the input for placing a new order.
type CreateRequest struct {
	CustomerName string
	Address      string
	ProductIDs   []int64
	OrderDate    time.Time
}

// UpdateRequest holds the input for replacing an order's mutable fields.
type UpdateRequest struct {
	CustomerName string
	Address      string
	ProductIDs   []int64
	TotalAmount  decimal.Decimal
}

// Page selects a window of orders for listing.
type Page struct {
	Limit  int
	Offset int
}

// Store persists orders. Reads go straight to the store; every mutation runs
// inside a Tx opened with Begin and finished by the caller.
type Store interface {
	List(ctx context.Context, page Page) ([]Order, error)
	// Get returns ErrNotFound when no order has the given id.
	Get(ctx context.Context, id int64) (*Order, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a unit of work over the order store. It never commits or rolls back
// on its own.
type Tx interface {
	// Insert stores o and fills in ID, CreatedAt and UpdatedAt.
	Insert(ctx context.Context, o *Order) error
	// Update overwrites the mutable fields of o if the stored row still has
	// updatedAt equal to prev, and sets o.UpdatedAt to the new strictly later
	// value. It returns ErrConflict when the row changed since it was read and
	// ErrNotFound when it no longer exists.
	Update(ctx context.Context, o *Order, prev time.Time) error
	// Delete removes the order under the same rules as Update.
	Delete(ctx context.Context, id int64, prev time.Time) error
	Commit(ctx context.Context) error
	// Rollback discards the transaction. Calling it after Commit is a no-op.
	Rollback(ctx context.Context) error
}

func (r CreateRequest) normalize(maxIDs int) (CreateRequest, error) {
	name, address, err := normalizeContact(r.CustomerName, r.Address)
	if err != nil {
		return CreateRequest{}, err
	}
	ids, err := normalizeProductIDs(r.ProductIDs, maxIDs)
	if err != nil {
		return CreateRequest{}, err
	}
	if r.OrderDate.IsZero() {
		return CreateRequest{}, &ValidationError{Field: "orderDate", Reason: "is required"}
	}
	return CreateRequest{
		CustomerName: name,
		Address:      address,
		ProductIDs:   ids,
		OrderDate:    r.OrderDate,
	}, nil
}

func (r UpdateRequest) normalize(maxIDs int) (UpdateRequest, error) {
	name, address, err := normalizeContact(r.CustomerName, r.Address)
	if err != nil {
		return UpdateRequest{}, err
	}
	ids, err := normalizeProductIDs(r.ProductIDs, maxIDs)
	if err != nil {
		return UpdateRequest{}, err
	}
	total := r.TotalAmount.Round(2)
	if !total.IsPositive() {
		return UpdateRequest{}, &ValidationError{Field: "totalAmount", Reason: "must be at least 0.01"}
	}
	return UpdateRequest{
		CustomerName: name,
		Address:      address,
		ProductIDs:   ids,
		TotalAmount:  total,
	}, nil
}

func normalizeContact(customerName, address string) (string, string, error) {
	name, err := requireText("customerName", customerName, maxCustomerNameLen)
	if err != nil {
		return "", "", err
	}
	addr, err := requireText("address", address, maxAddressLen)
	if err != nil {
		return "", "", err
	}
	return name, addr, nil
}

func requireText(field, v string, maxLen int) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(v) > maxLen {
		return "", &ValidationError{Field: field, Reason: "is too long"}
	}
	return v, nil
}

func normalizeProductIDs(ids []int64, maxIDs int) ([]int64, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "productIds", Reason: "at least one product is required"}
	}
	ids = product.Dedup(ids)
	if len(ids) > maxIDs {
		return nil, &ValidationError{
			Field:  "productIds",
			Reason: fmt.Sprintf("must reference at most %d distinct products", maxIDs),
		}
	}
	return ids, nil
}
