package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the catalog and inventory persistence used by handlers and the order services.
type Store interface {
	InsertProduct(ctx context.Context, np NewProduct) (Product, error)
	GetProductByID(ctx context.Context, id string) (Product, error)
	UpdateProduct(ctx context.Context, id string, np NewProduct) (Product, error)
	ListProducts(ctx context.Context, f ListFilter) ([]Product, error)

	// DecrementStockIfAtLeast removes quantity units only when at least that many are in stock.
	// It reports false, without error, when the stock is too low.
	DecrementStockIfAtLeast(ctx context.Context, id string, quantity int) (bool, error)
	IncrementStock(ctx context.Context, id string, quantity int) error
}

// Conf is the Postgres implementation of Store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return &Conf{db: db}, nil
}

const productColumns = `id, name, name_secondary, price, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.NameSecondary, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO products (id, name, name_secondary, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + productColumns
	p, err := scanProduct(c.db.QueryRowContext(ctx, query, uuid.NewString(), np.Name, np.NameSecondary, np.Price, np.Stock, now, now))
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (c *Conf) GetProductByID(ctx context.Context, id string) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to query product %s: %w", id, err)
	}
	return p, nil
}

func (c *Conf) UpdateProduct(ctx context.Context, id string, np NewProduct) (Product, error) {
	query := `
		UPDATE products
		SET name = $2, name_secondary = $3, price = $4, stock = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns
	p, err := scanProduct(c.db.QueryRowContext(ctx, query, id, np.Name, np.NameSecondary, np.Price, np.Stock))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to update product %s: %w", id, err)
	}
	return p, nil
}

func (c *Conf) ListProducts(ctx context.Context, f ListFilter) ([]Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name ASC
		LIMIT $2 OFFSET $3`
	rows, err := c.db.QueryContext(ctx, query, f.Name, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	list := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return list, nil
}

func (c *Conf) DecrementStockIfAtLeast(ctx context.Context, id string, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, fmt.Errorf("invalid quantity %d", quantity)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2`, id, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (c *Conf) IncrementStock(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("invalid quantity %d", quantity)
	}
	res, err := c.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to increment stock of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
