package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"forexhub/internal/payment"
	"forexhub/internal/subscription"
	"forexhub/pkg/db"
)

const pendingColumns = `request_id, merchant_request_id, subject_id, plan_kind, amount, phone_number, account_reference, state, created_at`

// LedgerWriter inserts a subscription row. Postgres hands it the settling
// transaction.
type LedgerWriter interface {
	CreateFromPayment(ctx context.Context, sub *subscription.Subscription) error
}

// Postgres keeps pending payments in the same database as the subscription
// ledger, so confirming a payment and granting its subscription commit
// together. Records never expire on their own.
type Postgres struct {
	db     *sqlx.DB
	ledger func(tx *sqlx.Tx) LedgerWriter
}

func NewPostgres(db *sqlx.DB, ledger func(tx *sqlx.Tx) LedgerWriter) *Postgres {
	return &Postgres{db: db, ledger: ledger}
}

func (s *Postgres) Put(ctx context.Context, p *payment.PendingPayment) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO pending_payments (`+pendingColumns+`)
		 VALUES (:request_id, :merchant_request_id, :subject_id, :plan_kind, :amount, :phone_number, :account_reference, :state, :created_at)`,
		p)
	if db.IsUniqueViolation(err) {
		return payment.ErrDuplicatePending
	}
	return errors.Wrap(err, "insert pending payment")
}

func (s *Postgres) Get(ctx context.Context, requestID string) (*payment.PendingPayment, error) {
	p := &payment.PendingPayment{}
	err := s.db.GetContext(ctx, p, `SELECT `+pendingColumns+` FROM pending_payments WHERE request_id = $1`, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get pending payment")
	}
	return p, nil
}

func (s *Postgres) CompareAndSwapState(ctx context.Context, requestID string, from, to payment.State) (bool, error) {
	if err := payment.CheckTransition(from, to); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_payments SET state = $3 WHERE request_id = $1 AND state = $2`,
		requestID, from, to)
	if err != nil {
		return false, errors.Wrap(err, "swap pending state")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "swap pending state")
	}
	return n == 1, nil
}

func (s *Postgres) Remove(ctx context.Context, requestID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_payments WHERE request_id = $1`, requestID)
	return errors.Wrap(err, "delete pending payment")
}

func (s *Postgres) List(ctx context.Context) ([]*payment.PendingPayment, error) {
	out := []*payment.PendingPayment{}
	err := s.db.SelectContext(ctx, &out, `SELECT `+pendingColumns+` FROM pending_payments ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "list pending payments")
	}
	return out, nil
}

func (s *Postgres) Settle(ctx context.Context, requestID string, from payment.State, grant payment.GrantFunc) (*payment.PendingPayment, *subscription.Subscription, error) {
	if from != payment.StateConfirmed {
		if err := payment.CheckTransition(from, payment.StateConfirmed); err != nil {
			return nil, nil, err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin settle")
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// the row lock taken here serialises concurrent settles of one payment
	p := &payment.PendingPayment{}
	err = tx.GetContext(ctx, p,
		`UPDATE pending_payments SET state = $3 WHERE request_id = $1 AND state = $2 RETURNING `+pendingColumns,
		requestID, from, payment.StateConfirmed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, payment.ErrUnknownPayment
		}
		return nil, nil, errors.Wrap(err, "confirm pending payment")
	}

	sub, err := grant(p)
	if err != nil {
		return p, nil, err
	}
	if err := s.ledger(tx).CreateFromPayment(ctx, sub); err != nil {
		if errors.Is(err, subscription.ErrDuplicateReference) {
			return p, nil, err
		}
		return p, nil, errors.Wrap(err, "record subscription")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_payments WHERE request_id = $1`, requestID); err != nil {
		return p, nil, errors.Wrap(err, "delete settled payment")
	}
	if err := tx.Commit(); err != nil {
		return p, nil, errors.Wrap(err, "commit settle")
	}
	committed = true
	return p, sub, nil
}
