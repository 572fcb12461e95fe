package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forexhub/internal/token"
)

type RefreshTokenRepository struct {
	db *sqlx.DB
}

func NewRefreshTokenRepository(db *sqlx.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Save(ctx context.Context, t *token.RefreshToken) error {
	return r.db.QueryRowxContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3) RETURNING id, created_at`,
		t.UserID, t.Token, t.ExpiresAt).Scan(&t.ID, &t.CreatedAt)
}

// Consume deletes the token and returns it, or nil if it was not there.
// Deleting and reading in one statement keeps a refresh token single-use.
func (r *RefreshTokenRepository) Consume(ctx context.Context, tokenStr string) (*token.RefreshToken, error) {
	t := &token.RefreshToken{}
	err := r.db.GetContext(ctx, t,
		`DELETE FROM refresh_tokens WHERE token = $1 RETURNING id, user_id, token, expires_at, created_at`,
		tokenStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
