package repository

import (
	"context"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, display_name, is_staff, is_active, created_at`

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, display_name, is_staff, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING id, is_active, created_at`,
		u.Email, u.DisplayName, u.IsStaff,
	).Scan(&u.ID, &u.IsActive, &u.CreatedAt)
	return mapError(err)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsStaff, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsStaff, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *UserRepository) UpdateDisplayName(ctx context.Context, id int64, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
