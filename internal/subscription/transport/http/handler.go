package http

import (
	"log/slog"
	"net/http"

	"forexhub/internal/subscription"
	"forexhub/internal/subscription/service"
	"forexhub/pkg/middleware"
)

type Handler struct {
	SubscriptionService *service.Service
	Logger              *slog.Logger
}

func NewSubscriptionHandler(ss *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{SubscriptionService: ss, Logger: logger}
}

type meResponse struct {
	Subscribed bool                         `json:"subscribed"`
	Active     *subscription.Subscription   `json:"active,omitempty"`
	History    []*subscription.Subscription `json:"history"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.SubjectFromContext(r.Context()).ID

	active, err := h.SubscriptionService.GetActive(r.Context(), userID)
	if err != nil {
		h.Logger.Error("load active subscription", "user_id", userID, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	history, err := h.SubscriptionService.History(r.Context(), userID)
	if err != nil {
		h.Logger.Error("load subscription history", "user_id", userID, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, meResponse{
		Subscribed: active != nil,
		Active:     active,
		History:    history,
	})
}
