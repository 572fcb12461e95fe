package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forexhub/internal/plan"
	"forexhub/pkg/db"
)

const planColumns = `id, kind, price, duration_days, description, is_active, created_at, updated_at`

type PostgresPlanRepository struct {
	db *sqlx.DB
}

func NewPostgresPlanRepository(db *sqlx.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{db: db}
}

// Create inserts p unless the kind already exists or the catalog holds limit
// rows. The table lock serialises concurrent creators so the cap holds.
func (r *PostgresPlanRepository) Create(ctx context.Context, p *plan.Plan, limit int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE subscription_plans IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return err
	}

	var count int
	var exists bool
	err = tx.QueryRowxContext(ctx,
		`SELECT COUNT(*), COALESCE(BOOL_OR(kind = $1), false) FROM subscription_plans`,
		p.Kind).Scan(&count, &exists)
	if err != nil {
		return err
	}
	if exists || count >= limit {
		return plan.ErrDuplicatePlan
	}

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO subscription_plans (kind, price, duration_days, description, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		p.Kind, p.Price, p.DurationDays, p.Description, p.IsActive).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return plan.ErrDuplicatePlan
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetByKind returns nil, nil when the kind is not in the catalog.
func (r *PostgresPlanRepository) GetByKind(ctx context.Context, kind plan.Kind) (*plan.Plan, error) {
	p := &plan.Plan{}
	err := r.db.GetContext(ctx, p, `SELECT `+planColumns+` FROM subscription_plans WHERE kind = $1`, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *PostgresPlanRepository) List(ctx context.Context, activeOnly bool) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY duration_days, id`

	plans := []*plan.Plan{}
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *PostgresPlanRepository) Update(ctx context.Context, p *plan.Plan) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscription_plans SET price = $1, duration_days = $2, description = $3, is_active = $4, updated_at = NOW()
		 WHERE kind = $5`,
		p.Price, p.DurationDays, p.Description, p.IsActive, p.Kind)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (r *PostgresPlanRepository) Delete(ctx context.Context, kind plan.Kind) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscription_plans WHERE kind = $1`, kind)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return plan.ErrPlanNotFound
	}
	return nil
}
