package subscription

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"forexhub/internal/plan"
)

var (
	ErrDuplicateReference = errors.New("subscription already recorded for payment reference")
	ErrInvalidPeriod      = errors.New("subscription end date must be after start date")
)

// Subscription is a ledger row. Rows are only ever created from a confirmed
// payment and are never mutated afterwards.
type Subscription struct {
	ID               int64           `json:"id" db:"id"`
	UserID           int64           `json:"user_id" db:"user_id"`
	PlanKind         plan.Kind       `json:"plan_kind" db:"plan_kind"`
	StartDate        time.Time       `json:"start_date" db:"start_date"`
	EndDate          time.Time       `json:"end_date" db:"end_date"`
	IsActive         bool            `json:"-" db:"is_active"`
	PaymentReference string          `json:"payment_reference" db:"payment_reference"`
	AccountReference string          `json:"account_reference" db:"account_reference"`
	AmountPaid       decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// IsActiveAt is the only activity check callers should trust; the stored
// is_active column is not kept in sync with time.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.EndDate.After(now)
}

func (s *Subscription) Validate() error {
	if !s.EndDate.After(s.StartDate) {
		return ErrInvalidPeriod
	}
	return nil
}
