package storage

import (
	"context"
	"errors"
	"fmt"

	"qmflow/internal/models"
	"qmflow/internal/util"

	"github.com/jackc/pgx/v5"
)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var u models.User
	err := r.db.Pool.QueryRow(ctx, `
SELECT user_id, display_name, permission_level FROM users WHERE user_id=$1`, userID).
		Scan(&u.UserID, &u.DisplayName, &u.PermissionLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, util.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) UpsertUser(ctx context.Context, u models.User) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO users (user_id, display_name, permission_level)
VALUES ($1, $2, $3)
ON CONFLICT (user_id)
DO UPDATE SET display_name = EXCLUDED.display_name, permission_level = EXCLUDED.permission_level`,
		u.UserID, u.DisplayName, u.PermissionLevel)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
