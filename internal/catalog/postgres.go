package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointvest/pointvest/internal/apperr"
)

const productColumns = `id, name, price, daily_income, validity_days, active`

// PostgresCatalog reads products from PostgreSQL.
type PostgresCatalog struct {
	db *pgxpool.Pool
}

// NewPostgresCatalog builds a catalog backed by PostgreSQL.
func NewPostgresCatalog(db *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// Get fetches a single product.
func (c *PostgresCatalog) Get(ctx context.Context, id string) (Product, error) {
	row := c.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product", id)
	}
	return p, err
}

// List returns every product ordered by id.
func (c *PostgresCatalog) List(ctx context.Context) ([]Product, error) {
	rows, err := c.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DailyIncome, &p.ValidityDays, &p.Active)
	return p, err
}
