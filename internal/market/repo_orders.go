package market

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct{ DB *pgxpool.Pool }

func (r *OrderRepo) Insert(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.BuyerID, o.TotalAmount, o.Status, o.CreatedAt); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, buyer_id, total_amount, status, created_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.BuyerID, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity, price FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Price); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// UpdateStatus enforces the forward-only transitions in status.go; anything
// else is rejected with a ValidationError.
func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID string, next Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return err
	}
	if !CanTransition(current, next) {
		return &ValidationError{Msg: "illegal status transition " + string(current) + " -> " + string(next)}
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, next); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *OrderRepo) ByBuyer(ctx context.Context, buyerID string) ([]Order, error) {
	return r.listWithItems(ctx, `
		SELECT id, buyer_id, total_amount, status, created_at
		FROM orders WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
}

// BySeller returns orders that contain at least one of the seller's products.
func (r *OrderRepo) BySeller(ctx context.Context, sellerID string) ([]Order, error) {
	return r.listWithItems(ctx, `
		SELECT DISTINCT o.id, o.buyer_id, o.total_amount, o.status, o.created_at
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		JOIN products p ON p.id = i.product_id
		WHERE p.seller_id=$1
		ORDER BY o.created_at DESC`, sellerID)
}

func (r *OrderRepo) listWithItems(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	idx := map[string]int{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		idx[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}
	irows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, quantity, price
		FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var orderID string
		var it OrderItem
		if err := irows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		if i, ok := idx[orderID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, irows.Err()
}
