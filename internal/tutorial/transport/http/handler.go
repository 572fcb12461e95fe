package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"forexhub/internal/tutorial"
	"forexhub/internal/tutorial/service"
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
	userID := middleware.SubjectFromContext(r.Context()).ID
	list, err := h.Service.List(r.Context(), userID)
	if err != nil {
		h.Logger.Error("list tutorials", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list tutorials")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "invalid tutorial id")
		return
	}

	userID := middleware.SubjectFromContext(r.Context()).ID
	t, err := h.Service.Get(r.Context(), userID, id)
	switch {
	case errors.Is(err, tutorial.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tutorial.ErrForbidden):
		middleware.WriteError(w, http.StatusForbidden, err.Error())
	case err != nil:
		h.Logger.Error("get tutorial", "id", id, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load tutorial")
	default:
		middleware.WriteJSON(w, http.StatusOK, t)
	}
}
