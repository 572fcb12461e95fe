package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	Monthly   Kind = "monthly"
	Quarterly Kind = "quarterly"
	Yearly    Kind = "yearly"
)

// MaxPlans caps the catalog at one row per kind.
const MaxPlans = 3

var Kinds = []Kind{Monthly, Quarterly, Yearly}

func (k Kind) Valid() bool {
	switch k {
	case Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// DurationDays is the subscription length granted by a paid plan of this kind.
func (k Kind) DurationDays() int {
	switch k {
	case Monthly:
		return 30
	case Quarterly:
		return 90
	case Yearly:
		return 365
	}
	return 0
}

// ParseKind matches exactly: "Monthly" is not a kind, so it can neither
// create nor collide with "monthly".
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, k.Valid()
}

type Plan struct {
	ID           int64           `json:"id" db:"id"`
	Kind         Kind            `json:"kind" db:"kind"`
	Price        decimal.Decimal `json:"price" db:"price"`
	DurationDays int             `json:"duration_days" db:"duration_days"`
	Description  string          `json:"description" db:"description"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}
