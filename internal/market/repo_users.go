package market

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo is read-mostly here; the order core never mutates users.
type UserRepo struct{ DB *pgxpool.Pool }

const userCols = `id, name, email, password_hash, role, created_at`

func (r *UserRepo) ByID(ctx context.Context, userID string) (User, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, userID)
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email)
}

func (r *UserRepo) one(ctx context.Context, q, key string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, q, key).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, &NotFoundError{Kind: "user", ID: key}
	}
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, u *User) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO users(id, name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	return err
}

func (r *UserRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
