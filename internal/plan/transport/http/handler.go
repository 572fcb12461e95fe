package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"forexhub/internal/api/dto"
	"forexhub/internal/plan"
	"forexhub/internal/plan/service"
	"forexhub/pkg/middleware"
)

type Handler struct {
	Service *service.Service
	Logger  *slog.Logger
}

func NewHandler(s *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: s, Logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Service.ListActivePlans(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, plans)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePlanRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	p, err := h.Service.CreatePlan(r.Context(), subject, req.Kind, req.Price, req.DurationDays, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req dto.EditPlanRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	p, err := h.Service.EditPlan(r.Context(), subject, chi.URLParam(r, "kind"), service.EditInput{
		Price:        req.Price,
		DurationDays: req.DurationDays,
		Description:  req.Description,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	if err := h.Service.DeletePlan(r.Context(), subject, chi.URLParam(r, "kind")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	p, err := h.Service.ToggleActive(r.Context(), subject, chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plan.ErrInvalidPlan):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, plan.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, plan.ErrPlanNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, plan.ErrDuplicatePlan):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error("plan request failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
