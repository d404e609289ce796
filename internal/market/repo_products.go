package market

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepo struct{ DB *pgxpool.Pool }

const productCols = `id, seller_id, name, description, price, stock, category, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price,
		&p.Stock, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepo) Get(ctx context.Context, productID string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, &NotFoundError{Kind: "product", ID: productID}
	}
	return p, err
}

func (r *ProductRepo) List(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products ORDER BY created_at DESC`)
}

func (r *ProductRepo) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	return r.list(ctx,
		`SELECT `+productCols+` FROM products WHERE seller_id=$1 ORDER BY created_at DESC`, sellerID)
}

func (r *ProductRepo) list(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, q, args...)
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

func (r *ProductRepo) Create(ctx context.Context, p *Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, seller_id, name, description, price, stock, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		p.ID, p.SellerID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.CreatedAt)
	return err
}

func (r *ProductRepo) Update(ctx context.Context, p *Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, stock=$5, category=$6, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.Category)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: p.ID}
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, productID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

func (r *ProductRepo) GetStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &NotFoundError{Kind: "product", ID: productID}
	}
	return stock, err
}

func (r *ProductRepo) SetStock(ctx context.Context, productID string, newStock int) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, productID, newStock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

// DecrementIfAtLeast is the atomic conditional decrement: the stock check
// and the write are one statement, so no caller can observe a stale value
// in between.
func (r *ProductRepo) DecrementIfAtLeast(ctx context.Context, productID string, amount int) (int, error) {
	var newStock int
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, productID, amount).Scan(&newStock)
	if errors.Is(err, pgx.ErrNoRows) {
		available, serr := r.GetStock(ctx, productID)
		if serr != nil {
			return 0, serr
		}
		return 0, &InsufficientStockError{ProductID: productID, Requested: amount, Available: available}
	}
	if err != nil {
		return 0, err
	}
	return newStock, nil
}
