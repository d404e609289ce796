package market

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo is append-only: entries are never updated or deleted.
type LedgerRepo struct{ DB *pgxpool.Pool }

func (r *LedgerRepo) Append(ctx context.Context, e *LedgerEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO inventory_logs(id, product_id, change_type, old_stock, new_stock, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ProductID, e.ChangeType, e.OldStock, e.NewStock, e.Reason, e.CreatedAt)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (r *LedgerRepo) FindByProduct(ctx context.Context, productID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, change_type, old_stock, new_stock, reason, created_at
		FROM inventory_logs WHERE product_id=$1
		ORDER BY created_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ChangeType, &e.OldStock,
			&e.NewStock, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *LedgerRepo) SummaryByChangeType(ctx context.Context) ([]ChangeSummary, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT change_type, COUNT(*), COALESCE(SUM(new_stock - old_stock), 0)
		FROM inventory_logs GROUP BY change_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChangeSummary
	for rows.Next() {
		var s ChangeSummary
		if err := rows.Scan(&s.ChangeType, &s.Count, &s.NetChange); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
