package plan

import "errors"

var (
	ErrDuplicatePlan = errors.New("plan already exists or catalog is full")
	ErrInvalidPlan   = errors.New("invalid plan")
	ErrPlanNotFound  = errors.New("plan not found")
	ErrForbidden     = errors.New("catalog management requires superuser")
)
