package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"forexhub/internal/plan"
	"forexhub/internal/user"
)

type PlanRepository interface {
	Create(ctx context.Context, p *plan.Plan, limit int) error
	GetByKind(ctx context.Context, kind plan.Kind) (*plan.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*plan.Plan, error)
	Update(ctx context.Context, p *plan.Plan) error
	Delete(ctx context.Context, kind plan.Kind) error
}

// EditInput carries the mutable plan fields. Nil fields are left untouched.
type EditInput struct {
	Price        *decimal.Decimal
	DurationDays *int
	Description  *string
	IsActive     *bool
}

type Service struct {
	repo      PlanRepository
	canManage func(user.Subject) bool
	logger    *slog.Logger
}

func NewService(repo PlanRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, canManage: user.CanManageCatalog, logger: logger}
}

func (s *Service) CreatePlan(ctx context.Context, subject user.Subject, kind string, price decimal.Decimal, durationDays int, description string) (*plan.Plan, error) {
	if !s.canManage(subject) {
		return nil, plan.ErrForbidden
	}

	k, ok := plan.ParseKind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", plan.ErrInvalidPlan, kind)
	}
	if !price.IsPositive() || durationDays <= 0 {
		return nil, fmt.Errorf("%w: price and duration must be positive", plan.ErrInvalidPlan)
	}

	p := &plan.Plan{
		Kind:         k,
		Price:        price,
		DurationDays: durationDays,
		Description:  description,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, p, plan.MaxPlans); err != nil {
		return nil, err
	}

	s.logger.Info("plan created", "kind", p.Kind, "price", p.Price.String(), "by", subject.ID)
	return p, nil
}

// EditPlan never changes the kind of an existing plan.
func (s *Service) EditPlan(ctx context.Context, subject user.Subject, kind string, in EditInput) (*plan.Plan, error) {
	if !s.canManage(subject) {
		return nil, plan.ErrForbidden
	}

	p, err := s.GetPlan(ctx, kind)
	if err != nil {
		return nil, err
	}

	if in.Price != nil {
		if !in.Price.IsPositive() {
			return nil, fmt.Errorf("%w: price must be positive", plan.ErrInvalidPlan)
		}
		p.Price = *in.Price
	}
	if in.DurationDays != nil {
		if *in.DurationDays <= 0 {
			return nil, fmt.Errorf("%w: duration must be positive", plan.ErrInvalidPlan)
		}
		p.DurationDays = *in.DurationDays
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePlan(ctx context.Context, subject user.Subject, kind string) error {
	if !s.canManage(subject) {
		return plan.ErrForbidden
	}
	k, ok := plan.ParseKind(kind)
	if !ok {
		return plan.ErrPlanNotFound
	}
	if err := s.repo.Delete(ctx, k); err != nil {
		return err
	}
	s.logger.Info("plan deleted", "kind", k, "by", subject.ID)
	return nil
}

func (s *Service) ToggleActive(ctx context.Context, subject user.Subject, kind string) (*plan.Plan, error) {
	if !s.canManage(subject) {
		return nil, plan.ErrForbidden
	}
	p, err := s.GetPlan(ctx, kind)
	if err != nil {
		return nil, err
	}
	p.IsActive = !p.IsActive
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListActivePlans(ctx context.Context) ([]*plan.Plan, error) {
	return s.repo.List(ctx, true)
}

// GetPlan returns ErrPlanNotFound for unknown kinds as well as missing rows.
func (s *Service) GetPlan(ctx context.Context, kind string) (*plan.Plan, error) {
	k, ok := plan.ParseKind(kind)
	if !ok {
		return nil, plan.ErrPlanNotFound
	}
	p, err := s.repo.GetByKind(ctx, k)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, plan.ErrPlanNotFound
	}
	return p, nil
}
