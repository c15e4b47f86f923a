package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"milaf-storefront/internal/domain"
)

const attemptColumns = `gateway_order_id, user_id, status, amount_cents, currency, quote, postcode, delivery_address,
	payment_method, COALESCE(payment_id, ''), COALESCE(order_id::text, ''), created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, a domain.PaymentAttempt) (*domain.PaymentAttempt, error) {
	quote, err := json.Marshal(a.Quote)
	if err != nil {
		return nil, err
	}
	address, err := json.Marshal(a.DeliveryAddress)
	if err != nil {
		return nil, err
	}
	q := `
INSERT INTO payment_attempts (gateway_order_id, user_id, status, amount_cents, currency, quote, postcode, delivery_address, payment_method)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + attemptColumns
	created, err := scanAttempt(r.pool.QueryRow(ctx, q,
		a.GatewayOrderID, a.UserID, string(a.Status), a.AmountCents, a.Currency, quote, a.Postcode, address, a.PaymentMethod,
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

func (r *postgresRepo) Get(ctx context.Context, gatewayOrderID string) (*domain.PaymentAttempt, error) {
	a, err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM payment_attempts WHERE gateway_order_id = $1`, gatewayOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *postgresRepo) Transition(ctx context.Context, gatewayOrderID string, from, to domain.PaymentStatus) (*domain.PaymentAttempt, error) {
	if !from.CanTransition(to) {
		return nil, domain.ErrInvalidTransition
	}
	q := `
UPDATE payment_attempts
SET status = $3, updated_at = now()
WHERE gateway_order_id = $1 AND status = $2
RETURNING ` + attemptColumns
	return r.conditional(ctx, q, gatewayOrderID, string(from), string(to))
}

func (r *postgresRepo) Complete(ctx context.Context, gatewayOrderID, paymentID, orderID string) (*domain.PaymentAttempt, error) {
	q := `
UPDATE payment_attempts
SET status = $3, payment_id = $4, order_id = $5::uuid, updated_at = now()
WHERE gateway_order_id = $1 AND status = $2
RETURNING ` + attemptColumns
	return r.conditional(ctx, q, gatewayOrderID, string(domain.PaymentAwaitingPayment), string(domain.PaymentVerified), paymentID, orderID)
}

func (r *postgresRepo) conditional(ctx context.Context, q, gatewayOrderID string, args ...interface{}) (*domain.PaymentAttempt, error) {
	params := append([]interface{}{gatewayOrderID}, args...)
	a, err := scanAttempt(r.pool.QueryRow(ctx, q, params...))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.Get(ctx, gatewayOrderID); getErr != nil {
		return nil, getErr
	}
	return nil, domain.ErrInvalidTransition
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	var status string
	var quote, address []byte
	if err := row.Scan(
		&a.GatewayOrderID, &a.UserID, &status, &a.AmountCents, &a.Currency, &quote, &a.Postcode, &address,
		&a.PaymentMethod, &a.PaymentID, &a.OrderID, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = domain.PaymentStatus(status)
	if err := json.Unmarshal(quote, &a.Quote); err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &a.DeliveryAddress); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
