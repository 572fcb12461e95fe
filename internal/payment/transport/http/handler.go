package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"forexhub/internal/api/dto"
	"forexhub/internal/payment"
	"forexhub/internal/payment/service"
	"forexhub/internal/plan"
	"forexhub/pkg/middleware"
)

const maxCallbackBody = 64 << 10

// PlanLookup prices a plan by kind.
type PlanLookup interface {
	GetPlan(ctx context.Context, kind string) (*plan.Plan, error)
}

type Handler struct {
	Service *service.Service
	Plans   PlanLookup
	Logger  *slog.Logger
}

func NewHandler(s *service.Service, plans PlanLookup, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: s, Plans: plans, Logger: logger}
}

type initiateResponse struct {
	CheckoutRequestID string        `json:"checkout_request_id"`
	AccountReference  string        `json:"account_reference"`
	State             payment.State `json:"state"`
	PlanKind          plan.Kind     `json:"plan_kind"`
	Amount            string        `json:"amount"`
	PhoneNumber       string        `json:"phone_number"`
	Message           string        `json:"message"`
}

// Initiate charges the caller the current price of the requested plan.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req dto.InitiatePaymentRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	p, err := h.Plans.GetPlan(r.Context(), req.PlanKind)
	if err != nil {
		if errors.Is(err, plan.ErrPlanNotFound) {
			middleware.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.Logger.Error("load plan", "kind", req.PlanKind, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}
	if !p.IsActive {
		middleware.WriteError(w, http.StatusNotFound, plan.ErrPlanNotFound.Error())
		return
	}

	subject := middleware.SubjectFromContext(r.Context())
	pending, err := h.Service.Initiate(r.Context(), subject.ID, string(p.Kind), p.Price, req.PhoneNumber)
	switch {
	case errors.Is(err, payment.ErrInvalidRequest):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, payment.ErrGatewayUnavailable):
		middleware.WriteError(w, http.StatusBadGateway, "payment gateway unavailable, please try again")
		return
	case err != nil:
		h.Logger.Error("initiate payment", "subject_id", subject.ID, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to initiate payment")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, initiateResponse{
		CheckoutRequestID: pending.RequestID,
		AccountReference:  pending.AccountReference,
		State:             pending.State,
		PlanKind:          pending.PlanKind,
		Amount:            pending.Amount.String(),
		PhoneNumber:       pending.PhoneNumber,
		Message:           "Check your phone to complete the payment.",
	})
}

type ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var accepted = ack{ResultCode: 0, ResultDesc: "Accepted"}

// Callback always acknowledges so the gateway does not redeliver; outcomes
// are logged by the service.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.Logger.Warn("read mpesa callback", "error", err)
		middleware.WriteJSON(w, http.StatusOK, accepted)
		return
	}

	res, err := h.Service.Resolve(r.Context(), raw)
	if err == nil {
		h.Logger.Info("mpesa callback processed", "request_id", res.CheckoutRequestID, "outcome", res.Outcome)
	}
	middleware.WriteJSON(w, http.StatusOK, accepted)
}

func (h *Handler) Timeout(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.Logger.Warn("read mpesa timeout", "error", err)
		middleware.WriteJSON(w, http.StatusOK, accepted)
		return
	}

	id, ok := payment.ParseTimeout(raw)
	if !ok {
		h.Logger.Warn("mpesa timeout without checkout request id", "body_size", len(raw))
		middleware.WriteJSON(w, http.StatusOK, accepted)
		return
	}

	res, err := h.Service.Expire(r.Context(), id)
	if err == nil {
		h.Logger.Info("mpesa timeout processed", "request_id", id, "outcome", res.Outcome)
	}
	middleware.WriteJSON(w, http.StatusOK, accepted)
}
