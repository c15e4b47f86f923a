package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"milaf-storefront/internal/domain"
)

const orderColumns = `id::text, user_id, payment_id, gateway_order_id, items, items_total_cents, shipping_cents, tax_cents,
	total_amount_cents, currency, status, order_date, delivery_address, payment_method, COALESCE(tracking_number, '')`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) (*domain.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	address, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO orders (user_id, payment_id, gateway_order_id, items, items_total_cents, shipping_cents, tax_cents,
	total_amount_cents, currency, status, delivery_address, payment_method)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + orderColumns
	created, err := scanOrder(r.pool.QueryRow(ctx, q,
		o.UserID, o.PaymentID, o.GatewayOrderID, items, o.ItemsTotalCents, o.ShippingCents, o.TaxCents,
		o.TotalAmountCents, o.Currency, string(o.Status), address, o.PaymentMethod,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id)
}

func (r *postgresRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

func (r *postgresRepo) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY order_date DESC, id`, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		// class 53 is insufficient resources, e.g. a sort that exceeds work_mem limits
		if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
			return nil, domain.ErrOrderingUnsupported
		}
		return nil, err
	}
	return orders, nil
}

func (r *postgresRepo) ListForUserUnordered(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1`, userID)
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber string) (*domain.Order, error) {
	q := `
UPDATE orders
SET status = $3,
    tracking_number = COALESCE(NULLIF($4, ''), tracking_number)
WHERE id::text = $1 AND status = $2
RETURNING ` + orderColumns
	updated, err := scanOrder(r.pool.QueryRow(ctx, q, id, string(from), string(to), trackingNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// the row moved on under us or never existed
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *postgresRepo) getOne(ctx context.Context, q string, arg string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, q, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var items, address []byte
	var status string
	if err := row.Scan(
		&o.ID, &o.UserID, &o.PaymentID, &o.GatewayOrderID, &items, &o.ItemsTotalCents, &o.ShippingCents, &o.TaxCents,
		&o.TotalAmountCents, &o.Currency, &status, &o.OrderDate, &address, &o.PaymentMethod, &o.TrackingNumber,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
			return nil, err
		}
	}
	return &o, nil
}
