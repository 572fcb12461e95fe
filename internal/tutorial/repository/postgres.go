package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forexhub/internal/tutorial"
)

const tutorialColumns = `id, title, description, video_url, price, free_access, sort_order, COALESCE(author_id, 0) AS author_id, created_at`

type PostgresTutorialRepository struct {
	db *sqlx.DB
}

func NewPostgresTutorialRepository(db *sqlx.DB) *PostgresTutorialRepository {
	return &PostgresTutorialRepository{db: db}
}

// GetByID returns nil, nil when the tutorial does not exist.
func (r *PostgresTutorialRepository) GetByID(ctx context.Context, id int64) (*tutorial.Tutorial, error) {
	t := &tutorial.Tutorial{}
	err := r.db.GetContext(ctx, t, `SELECT `+tutorialColumns+` FROM tutorials WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresTutorialRepository) List(ctx context.Context) ([]*tutorial.Tutorial, error) {
	out := []*tutorial.Tutorial{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+tutorialColumns+` FROM tutorials ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	return out, nil
}
