package product

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

const productColumns = `name, price_cents, case_price_cents, COALESCE(category, ''), COALESCE(description, ''), stock_status, currency, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger.Named("product_repo")}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products ORDER BY category NULLS LAST, name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product not found", zap.String("name", name))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (name, price_cents, case_price_cents, category, description, stock_status, currency)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
ON CONFLICT (name) DO UPDATE SET
    price_cents = EXCLUDED.price_cents,
    case_price_cents = EXCLUDED.case_price_cents,
    category = EXCLUDED.category,
    description = EXCLUDED.description,
    stock_status = EXCLUDED.stock_status,
    currency = EXCLUDED.currency
RETURNING created_at
`
	if product.StockStatus == "" {
		product.StockStatus = domain.StockInStock
	}
	product.Currency = strings.ToUpper(product.Currency)
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.Name,
		product.PriceCents,
		product.CasePriceCents,
		product.Category,
		product.Description,
		string(product.StockStatus),
		product.Currency,
	).Scan(&res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("name", product.Name), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("upserted product", zap.String("name", res.Name), zap.Int64("price_cents", res.PriceCents))
	return &res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	var stock string
	if err := row.Scan(&p.Name, &p.PriceCents, &p.CasePriceCents, &p.Category, &p.Description, &stock, &p.Currency, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StockStatus = domain.StockStatus(stock)
	return &p, nil
}
