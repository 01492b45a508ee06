package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/wellness-session-booking/internal/model"
)

// UserRepo reads the local users table, which mirrors accounts of the
// identity provider.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,display_name,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// ContactEmail returns the address confirmations are sent to.
func (r *UserRepo) ContactEmail(ctx context.Context, userID string) (string, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.Email == "" {
		return "", ErrUserNotFound
	}
	return u.Email, nil
}
