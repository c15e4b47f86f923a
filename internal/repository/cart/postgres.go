package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"milaf-storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) AddItem(ctx context.Context, userID string, item domain.CartLineItem) (*domain.CartSummary, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, userID, true); err != nil {
		return nil, err
	}

	var other string
	err = tx.QueryRow(ctx, `
SELECT unit_kind
FROM cart_lines
WHERE user_id = $1 AND name = $2 AND unit_kind <> $3
LIMIT 1
`, userID, item.Name, string(item.UnitKind)).Scan(&other)
	if err == nil {
		return nil, domain.ErrConflict
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines (user_id, name, unit_kind, quantity, price_cents, paid)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, name, unit_kind) DO UPDATE SET
    quantity = cart_lines.quantity + EXCLUDED.quantity,
    price_cents = EXCLUDED.price_cents
`, userID, item.Name, string(item.UnitKind), item.Quantity, item.PriceCents, item.Paid); err != nil {
		return nil, mapQuantityErr(err)
	}

	summary, err := updateCartTotal(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit(ctx)
}

func (r *postgresRepo) RemoveItem(ctx context.Context, userID, name string, kind domain.UnitKind) (*domain.CartSummary, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, userID, false); err != nil {
		return nil, err
	}

	cmd, err := tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE user_id = $1 AND name = $2 AND unit_kind = $3
`, userID, name, string(kind))
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}

	summary, err := updateCartTotal(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit(ctx)
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, userID, name string, kind domain.UnitKind, quantity int) (*domain.CartSummary, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, userID, false); err != nil {
		return nil, err
	}

	var cmdErr error
	var affected int64
	if quantity <= 0 {
		cmd, err := tx.Exec(ctx, `
DELETE FROM cart_lines
WHERE user_id = $1 AND name = $2 AND unit_kind = $3
`, userID, name, string(kind))
		affected, cmdErr = cmd.RowsAffected(), err
	} else {
		cmd, err := tx.Exec(ctx, `
UPDATE cart_lines
SET quantity = $4
WHERE user_id = $1 AND name = $2 AND unit_kind = $3
`, userID, name, string(kind), quantity)
		affected, cmdErr = cmd.RowsAffected(), err
	}
	if cmdErr != nil {
		return nil, mapQuantityErr(cmdErr)
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	summary, err := updateCartTotal(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit(ctx)
}

func (r *postgresRepo) ListItems(ctx context.Context, userID string) ([]domain.CartLineItem, error) {
	const q = `
SELECT name, quantity, unit_kind, price_cents, paid, added_at
FROM cart_lines
WHERE user_id = $1
ORDER BY added_at ASC, name ASC
`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartLineItem
	for rows.Next() {
		var item domain.CartLineItem
		var kind string
		if err := rows.Scan(&item.Name, &item.Quantity, &kind, &item.PriceCents, &item.Paid, &item.AddedAt); err != nil {
			return nil, err
		}
		item.UnitKind = domain.UnitKind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *postgresRepo) Clear(ctx context.Context, userID string) (*domain.CartSummary, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := lockCart(ctx, tx, userID, true); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	summary, err := updateCartTotal(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return summary, tx.Commit(ctx)
}

func (r *postgresRepo) Summary(ctx context.Context, userID string) (*domain.CartSummary, error) {
	const q = `
SELECT user_id, total_items, total_price_cents, version, updated_at
FROM carts
WHERE user_id = $1
`
	summary, err := scanSummary(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.CartSummary{UserID: userID}, nil
	}
	return summary, err
}

// lockCart takes the per-user row lock that serializes cart writers. With
// create set, a missing cart row is created first.
func lockCart(ctx context.Context, tx pgx.Tx, userID string, create bool) error {
	if create {
		if _, err := tx.Exec(ctx, `
INSERT INTO carts (user_id) VALUES ($1)
ON CONFLICT (user_id) DO NOTHING
`, userID); err != nil {
			return err
		}
	}
	var version int64
	err := tx.QueryRow(ctx, `SELECT version FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func updateCartTotal(ctx context.Context, tx pgx.Tx, userID string) (*domain.CartSummary, error) {
	return scanSummary(tx.QueryRow(ctx, `
UPDATE carts
SET total_items = COALESCE((
	SELECT SUM(quantity)
	FROM cart_lines
	WHERE user_id = $1
), 0),
    total_price_cents = COALESCE((
	SELECT SUM(quantity * price_cents)
	FROM cart_lines
	WHERE user_id = $1
), 0),
    version = version + 1,
    updated_at = now()
WHERE user_id = $1
RETURNING user_id, total_items, total_price_cents, version, updated_at
`, userID))
}

func scanSummary(row pgx.Row) (*domain.CartSummary, error) {
	var s domain.CartSummary
	if err := row.Scan(&s.UserID, &s.TotalItems, &s.TotalPriceCents, &s.Version, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// mapQuantityErr turns the cart_lines quantity CHECK violation into a
// validation error.
func mapQuantityErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return domain.Invalid("quantity", fmt.Sprintf("line quantity must be between 1 and %d", domain.MaxLineQuantity))
	}
	return err
}
