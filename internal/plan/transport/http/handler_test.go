package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forexhub/internal/plan"
	"forexhub/internal/plan/service"
	"forexhub/pkg/middleware"
)

type stubRepo struct {
	rows map[plan.Kind]*plan.Plan
}

func (s *stubRepo) Create(_ context.Context, p *plan.Plan, limit int) error {
	if _, ok := s.rows[p.Kind]; ok || len(s.rows) >= limit {
		return plan.ErrDuplicatePlan
	}
	p.ID = int64(len(s.rows) + 1)
	s.rows[p.Kind] = p
	return nil
}

func (s *stubRepo) GetByKind(_ context.Context, k plan.Kind) (*plan.Plan, error) {
	return s.rows[k], nil
}

func (s *stubRepo) List(_ context.Context, activeOnly bool) ([]*plan.Plan, error) {
	out := []*plan.Plan{}
	for _, k := range plan.Kinds {
		if p, ok := s.rows[k]; ok && (!activeOnly || p.IsActive) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubRepo) Update(_ context.Context, p *plan.Plan) error {
	s.rows[p.Kind] = p
	return nil
}

func (s *stubRepo) Delete(_ context.Context, k plan.Kind) error {
	if _, ok := s.rows[k]; !ok {
		return plan.ErrPlanNotFound
	}
	delete(s.rows, k)
	return nil
}

func newRouter() http.Handler {
	h := NewHandler(service.NewService(&stubRepo{rows: map[plan.Kind]*plan.Plan{}}, nil), nil)
	r := chi.NewRouter()
	r.Use(middleware.JWTAuth("secret"))
	r.Get("/api/plans", h.List)
	r.Post("/api/plans", h.Create)
	r.Put("/api/plans/{kind}", h.Edit)
	r.Delete("/api/plans/{kind}", h.Delete)
	r.Post("/api/plans/{kind}/toggle", h.Toggle)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPlanLifecycle(t *testing.T) {
	r := newRouter()
	admin := adminToken(t)

	rec := do(t, r, http.MethodPost, "/api/plans", `{"kind":"monthly","price":"1000","duration_days":30}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/plans", `{"kind":"monthly","price":"1000","duration_days":30}`, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/plans/monthly", `{"price":"1200"}`, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"monthly"`)
	assert.Contains(t, rec.Body.String(), `"price":"1200"`)

	rec = do(t, r, http.MethodPost, "/api/plans/monthly/toggle", "{}", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = do(t, r, http.MethodDelete, "/api/plans/monthly", "", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/plans/monthly", "", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanCreateForbiddenForMembers(t *testing.T) {
	r := newRouter()
	rec := do(t, r, http.MethodPost, "/api/plans", `{"kind":"monthly","price":"1000","duration_days":30}`, memberToken(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPlanCreateInvalidKind(t *testing.T) {
	r := newRouter()
	rec := do(t, r, http.MethodPost, "/api/plans", `{"kind":"weekly","price":"10","duration_days":7}`, adminToken(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
