package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexhub/internal/plan"
	"forexhub/internal/user"
)

type memPlans struct {
	mu     sync.Mutex
	nextID int64
	rows   map[plan.Kind]*plan.Plan
}

func newMemPlans() *memPlans {
	return &memPlans{rows: map[plan.Kind]*plan.Plan{}}
}

func (m *memPlans) Create(_ context.Context, p *plan.Plan, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.Kind]; ok || len(m.rows) >= limit {
		return plan.ErrDuplicatePlan
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.rows[p.Kind] = &cp
	return nil
}

func (m *memPlans) GetByKind(_ context.Context, k plan.Kind) (*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[k]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPlans) List(_ context.Context, activeOnly bool) ([]*plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*plan.Plan
	for _, k := range plan.Kinds {
		if p, ok := m.rows[k]; ok && (!activeOnly || p.IsActive) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPlans) Update(_ context.Context, p *plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.Kind]; !ok {
		return plan.ErrPlanNotFound
	}
	cp := *p
	m.rows[p.Kind] = &cp
	return nil
}

func (m *memPlans) Delete(_ context.Context, k plan.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[k]; !ok {
		return plan.ErrPlanNotFound
	}
	delete(m.rows, k)
	return nil
}

var (
	admin  = user.Subject{ID: 1, IsSuperuser: true}
	member = user.Subject{ID: 2}
	price  = decimal.NewFromInt(1500)
)

func TestCreatePlanDuplicateKind(t *testing.T) {
	svc := NewService(newMemPlans(), nil)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, admin, "monthly", price, 30, "")
	require.NoError(t, err)

	_, err = svc.CreatePlan(ctx, admin, "monthly", price, 30, "")
	assert.ErrorIs(t, err, plan.ErrDuplicatePlan)

	// kinds match exactly; a differently cased name is not a kind at all
	_, err = svc.CreatePlan(ctx, admin, "Monthly", price, 30, "")
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)
}

func TestCreatePlanFullCatalog(t *testing.T) {
	repo := newMemPlans()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, admin, "monthly", price, 30, "")
	require.NoError(t, err)
	_, err = svc.CreatePlan(ctx, admin, "quarterly", price, 90, "")
	require.NoError(t, err)
	// a row left behind by an older catalog still counts towards the cap
	repo.rows["legacy"] = &plan.Plan{ID: 99, Kind: "legacy"}

	_, err = svc.CreatePlan(ctx, admin, "yearly", price, 365, "")
	assert.ErrorIs(t, err, plan.ErrDuplicatePlan)
}

func TestCreatePlanRequiresSuperuser(t *testing.T) {
	svc := NewService(newMemPlans(), nil)
	_, err := svc.CreatePlan(context.Background(), member, "monthly", price, 30, "")
	assert.ErrorIs(t, err, plan.ErrForbidden)

	_, err = svc.CreatePlan(context.Background(), user.Subject{IsSuperuser: true}, "monthly", price, 30, "")
	assert.ErrorIs(t, err, plan.ErrForbidden)
}

func TestCreatePlanValidation(t *testing.T) {
	svc := NewService(newMemPlans(), nil)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, admin, "weekly", price, 7, "")
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)

	_, err = svc.CreatePlan(ctx, admin, "monthly", decimal.Zero, 30, "")
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)

	_, err = svc.CreatePlan(ctx, admin, "monthly", price, 0, "")
	assert.ErrorIs(t, err, plan.ErrInvalidPlan)
}

func TestEditPlanKeepsKind(t *testing.T) {
	svc := NewService(newMemPlans(), nil)
	ctx := context.Background()
	_, err := svc.CreatePlan(ctx, admin, "quarterly", price, 90, "old")
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("3999.99")
	desc := "three months"
	p, err := svc.EditPlan(ctx, admin, "quarterly", EditInput{Price: &newPrice, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, plan.Quarterly, p.Kind)
	assert.True(t, newPrice.Equal(p.Price))
	assert.Equal(t, 90, p.DurationDays)

	_, err = svc.EditPlan(ctx, admin, "yearly", EditInput{Description: &desc})
	assert.ErrorIs(t, err, plan.ErrPlanNotFound)

	_, err = svc.EditPlan(ctx, member, "quarterly", EditInput{Description: &desc})
	assert.ErrorIs(t, err, plan.ErrForbidden)
}

func TestToggleActiveHidesPlan(t *testing.T) {
	svc := NewService(newMemPlans(), nil)
	ctx := context.Background()
	_, err := svc.CreatePlan(ctx, admin, "monthly", price, 30, "")
	require.NoError(t, err)

	p, err := svc.ToggleActive(ctx, admin, "monthly")
	require.NoError(t, err)
	assert.False(t, p.IsActive)

	active, err := svc.ListActivePlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// still resolvable by kind for management
	_, err = svc.GetPlan(ctx, "monthly")
	assert.NoError(t, err)
}
