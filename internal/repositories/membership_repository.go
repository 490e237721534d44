package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// MembershipStore is the authoritative source of project membership.
type MembershipStore interface {
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
}

// MembershipRepo is a sqlx implementation of MembershipStore over project_members.
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo constructs a MembershipRepo.
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// IsMember checks membership.
func (r *MembershipRepo) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}
