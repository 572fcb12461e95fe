package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"forexhub/internal/subscription"
	"forexhub/pkg/db"
)

const subscriptionColumns = `id, user_id, plan_kind, start_date, end_date, is_active, payment_reference, account_reference, amount_paid, created_at`

type SubscriptionRepository struct {
	db sqlx.ExtContext
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// NewTxSubscriptionRepository runs the same queries inside tx, so a ledger
// write can commit or roll back together with the caller's other statements.
func NewTxSubscriptionRepository(tx *sqlx.Tx) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

// CreateFromPayment inserts a ledger row. A second insert for the same
// payment reference fails with ErrDuplicateReference.
func (r *SubscriptionRepository) CreateFromPayment(ctx context.Context, sub *subscription.Subscription) error {
	sub.IsActive = true
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO subscriptions (user_id, plan_kind, start_date, end_date, is_active, payment_reference, account_reference, amount_paid, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id, created_at`,
		sub.UserID, sub.PlanKind, sub.StartDate, sub.EndDate, sub.IsActive, sub.PaymentReference, sub.AccountReference, sub.AmountPaid).
		Scan(&sub.ID, &sub.CreatedAt)
	if db.IsUniqueViolation(err) {
		return subscription.ErrDuplicateReference
	}
	return err
}

// GetActiveByUserID returns the subscription running longest at now, or nil, nil.
func (r *SubscriptionRepository) GetActiveByUserID(ctx context.Context, userID int64, now time.Time) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	err := sqlx.GetContext(ctx, r.db, sub,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND end_date > $2
		 ORDER BY end_date DESC LIMIT 1`,
		userID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) ListByUserID(ctx context.Context, userID int64) ([]*subscription.Subscription, error) {
	subs := []*subscription.Subscription{}
	err := sqlx.SelectContext(ctx, r.db, &subs,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY start_date DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// GetByPaymentReference returns nil, nil when no row carries ref.
func (r *SubscriptionRepository) GetByPaymentReference(ctx context.Context, ref string) (*subscription.Subscription, error) {
	sub := &subscription.Subscription{}
	err := sqlx.GetContext(ctx, r.db, sub,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE payment_reference = $1`, ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}
