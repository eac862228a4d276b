package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/ecommerce-orders/internal/domain/order"
)

var orderColumns = []string{
	"id", "customer_name", "address", "product_ids", "total_amount",
	"order_date", "created_at", "updated_at",
}

const (
	getOrderSQL = `SELECT id, customer_name, address, product_ids, total_amount,
	order_date, created_at, updated_at
	FROM orders WHERE id = $1`

	insertOrderSQL = `INSERT INTO orders (customer_name, address, product_ids, total_amount, order_date)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at, updated_at`

	// updated_at always moves forward, even when two writes land within the
	// same clock tick.
	updateOrderSQL = `UPDATE orders
	SET customer_name = $2, address = $3, product_ids = $4, total_amount = $5,
		updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
	WHERE id = $1 AND updated_at = $6
	RETURNING updated_at`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 AND updated_at = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Stale writes are
// detected by comparing updated_at with the value the caller loaded.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

type orderRow struct {
	ID           int64           `db:"id"`
	CustomerName string          `db:"customer_name"`
	Address      string          `db:"address"`
	ProductIDs   []int64         `db:"product_ids"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	OrderDate    time.Time       `db:"order_date"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r orderRow) toDomain() order.Order {
	return order.Order{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Address:      r.Address,
		ProductIDs:   r.ProductIDs,
		TotalAmount:  r.TotalAmount,
		OrderDate:    r.OrderDate,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// List returns a page of orders ordered by id.
func (s *OrderStore) List(ctx context.Context, page order.Page) ([]order.Order, error) {
	q := sq.Select(orderColumns...).
		From("orders").
		OrderBy("id").
		PlaceholderFormat(sq.Dollar)
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list orders query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}

	orders := make([]order.Order, len(collected))
	for i, row := range collected {
		orders[i] = row.toDomain()
	}
	return orders, nil
}

// Get returns a single order or order.ErrNotFound.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[orderRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order %d: %w", id, err)
	}

	o := row.toDomain()
	return &o, nil
}

// Begin opens a read-committed transaction. Row versions are checked by
// every write, so a stronger isolation level is not needed.
func (s *OrderStore) Begin(ctx context.Context) (order.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &orderTx{tx: tx}, nil
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) Insert(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.CustomerName, o.Address, o.ProductIDs, o.TotalAmount, o.OrderDate,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (t *orderTx) Update(ctx context.Context, o *order.Order, prev time.Time) error {
	var updatedAt time.Time
	err := t.tx.QueryRow(ctx, updateOrderSQL,
		o.ID, o.CustomerName, o.Address, o.ProductIDs, o.TotalAmount, prev,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return t.staleOrMissing(ctx, o.ID)
		}
		return fmt.Errorf("updating order %d: %w", o.ID, err)
	}
	o.UpdatedAt = updatedAt
	return nil
}

func (t *orderTx) Delete(ctx context.Context, id int64, prev time.Time) error {
	tag, err := t.tx.Exec(ctx, deleteOrderSQL, id, prev)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return t.staleOrMissing(ctx, id)
	}
	return nil
}

// staleOrMissing explains why a versioned write matched no row.
func (t *orderTx) staleOrMissing(ctx context.Context, id int64) error {
	var exists bool
	if err := t.tx.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %d: %w", id, err)
	}
	if exists {
		return order.ErrConflict
	}
	return order.ErrNotFound
}

func (t *orderTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (t *orderTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}
