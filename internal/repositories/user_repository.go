package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"project-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// IdentityStore resolves user ids to display identities.
type IdentityStore interface {
	FindByID(ctx context.Context, id string) (models.Identity, error)
}

// UserRepo is a sqlx-backed IdentityStore.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindByID fetches a single user.
func (r *UserRepo) FindByID(ctx context.Context, id string) (models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT id, username, full_name, avatar FROM users WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrUserNotFound
	}
	return identity, err
}
