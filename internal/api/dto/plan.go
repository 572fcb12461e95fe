package dto

import "github.com/shopspring/decimal"

type CreatePlanRequest struct {
	Kind         string          `json:"kind" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days" validate:"required,gt=0"`
	Description  string          `json:"description" validate:"max=500"`
}

// EditPlanRequest leaves nil fields untouched.
type EditPlanRequest struct {
	Price        *decimal.Decimal `json:"price"`
	DurationDays *int             `json:"duration_days" validate:"omitempty,gt=0"`
	Description  *string          `json:"description" validate:"omitempty,max=500"`
	IsActive     *bool            `json:"is_active"`
}
