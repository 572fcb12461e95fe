package http

import (
	"errors"
	"log/slog"
	"net/http"

	"forexhub/internal/api/dto"
	"forexhub/internal/token"
	"forexhub/internal/user/repository"
	"forexhub/internal/user/service"
	"forexhub/pkg/middleware"
)

type Handler struct {
	UserService *service.UserService
	Logger      *slog.Logger
}

func NewHandler(us *service.UserService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{UserService: us, Logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	u, err := h.UserService.Register(r.Context(), req.Email, req.FullName, req.PhoneNumber, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) || errors.Is(err, repository.ErrDuplicateUser) {
			middleware.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.Logger.Error("register failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	session, err := h.UserService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCreds) {
			middleware.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.Logger.Error("login failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := dto.Decode(r.Body, &req); err != nil {
		middleware.HandleValidationError(w, err)
		return
	}

	session, err := h.UserService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrExpiredToken), errors.Is(err, service.ErrUserNotFound):
			middleware.WriteError(w, http.StatusUnauthorized, err.Error())
		default:
			h.Logger.Error("refresh failed", "error", err)
			middleware.WriteError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	middleware.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	u, err := h.UserService.GetByID(r.Context(), subject.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			middleware.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.Logger.Error("load current user failed", "user_id", subject.ID, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, u)
}
