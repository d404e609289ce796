package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgCartStore opens placement transactions against Postgres. Row locks from
// pgCartSession.Product serialize concurrent placements per product, which is
// what keeps two racing carts from driving stock negative.
type PgCartStore struct{ DB *pgxpool.Pool }

func (s *PgCartStore) Begin(ctx context.Context) (CartSession, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &pgCartSession{tx: tx}, nil
}

type pgCartSession struct{ tx pgx.Tx }

func (s *pgCartSession) Product(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := s.tx.QueryRow(ctx, `
		SELECT id, seller_id, name, description, price, stock, category, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Stock,
			&p.Category, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &NotFoundError{Kind: "product", ID: productID}
	}
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *pgCartSession) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	var newStock int
	err := s.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, productID, qty).Scan(&newStock)
	if errors.Is(err, pgx.ErrNoRows) {
		// Cannot happen after a locked validation pass; surfaced anyway.
		return 0, fmt.Errorf("stock decrement rejected for product %s", productID)
	}
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

func (s *pgCartSession) InsertOrder(ctx context.Context, o *Order) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		o.ID, o.BuyerID, o.TotalAmount, o.Status, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := s.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgCartSession) AppendEntry(ctx context.Context, e *LedgerEntry) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO inventory_logs(id, product_id, change_type, old_stock, new_stock, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ProductID, e.ChangeType, e.OldStock, e.NewStock, e.Reason, e.CreatedAt)
	return err
}

func (s *pgCartSession) Commit(ctx context.Context) error   { return s.tx.Commit(ctx) }
func (s *pgCartSession) Rollback(ctx context.Context) error { return s.tx.Rollback(ctx) }
