package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/ecommerce-orders/internal/domain/product"
)

const (
	getProductSQL = `SELECT id, name, description, price FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, description, price)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, description = EXCLUDED.description,
		price = EXCLUDED.price, updated_at = now()`

	// Explicit ids bypass the sequence, so it is moved past the largest one.
	syncProductSequenceSQL = `SELECT setval(pg_get_serial_sequence('products', 'id'),
	GREATEST((SELECT MAX(id) FROM products), 1))`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

type productRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
}

func (r productRow) toDomain() product.Snapshot {
	return product.Snapshot{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
	}
}

// List returns all products ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]product.Snapshot, error) {
	return r.selectProducts(ctx, sq.Select("id", "name", "description", "price").
		From("products").
		OrderBy("id"))
}

// GetByID returns a single product or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("scanning product %d: %w", id, err)
	}

	p := row.toDomain()
	return &p, nil
}

// GetByIDs returns the products among ids that exist, ordered by id. Absent
// ids are omitted.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Snapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.selectProducts(ctx, sq.Select("id", "name", "description", "price").
		From("products").
		Where(sq.Eq{"id": ids}).
		OrderBy("id"))
}

func (r *ProductRepository) selectProducts(ctx context.Context, q sq.SelectBuilder) ([]product.Snapshot, error) {
	query, args, err := q.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building products query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[productRow])
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}

	products := make([]product.Snapshot, len(collected))
	for i, row := range collected {
		products[i] = row.toDomain()
	}
	return products, nil
}

// UpsertAll inserts or updates products in one transaction and moves the id
// sequence past the largest id.
func (r *ProductRepository) UpsertAll(ctx context.Context, products []product.Snapshot) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range products {
			batch.Queue(upsertProductSQL, p.ID, p.Name, p.Description, p.Price)
		}
		batch.Queue(syncProductSequenceSQL)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upserting products: %w", err)
		}
		return nil
	})
}
