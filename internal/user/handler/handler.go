// Package handler exposes the account API under /api/v1/users.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meridian/internal/user/models"
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/requestcontext"
)

// Service is the account behavior the HTTP layer depends on.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	Create(ctx context.Context, actor auth.Principal, req *models.CreateUserRequest) (*models.User, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error)
	Get(ctx context.Context, actor auth.Principal, userID domain.UserID) (*models.User, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.User, int, error)
	Update(ctx context.Context, actor auth.Principal, userID domain.UserID, req *models.UpdateUserRequest) (*models.User, error)
	Deactivate(ctx context.Context, actor auth.Principal, userID domain.UserID) (*models.User, error)
	Delete(ctx context.Context, actor auth.Principal, userID domain.UserID) error
	Stats(ctx context.Context) (*models.StatsResponse, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the account routes. Registration and login are
// public; everything else needs a valid token, and the management
// surface additionally needs the admin role.
func (h *Handler) Register(r chi.Router, verifier auth.TokenVerifier) {
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(verifier))

			r.Get("/me", h.HandleMe)
			r.Put("/me", h.HandleUpdateMe)
			r.Get("/{id}", h.HandleGet)
			r.Put("/{id}", h.HandleUpdate)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole("admin"))

				r.Post("/", h.HandleCreate)
				r.Get("/", h.HandleList)
				r.Get("/stats/summary", h.HandleStats)
				r.Post("/{id}/deactivate", h.HandleDeactivate)
				r.Delete("/{id}", h.HandleDelete)
			})
		})
	})
}

// HandleRegister creates an account from a self-service signup.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	u, err := h.service.Register(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "registration failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(u))
}

// HandleLogin exchanges credentials for an access token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.service.Login(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleMe returns the authenticated user's own account.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(ctx, p, p.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get profile failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "user_id", p.UserID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(u))
}

// HandleUpdateMe applies a partial update to the authenticated user's
// own account.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	u, err := h.service.Update(ctx, p, p.UserID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update profile failed", "error", err,
			"request_id", requestID, "user_id", p.UserID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(u))
}

// HandleCreate adds an account on behalf of an administrator.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CreateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	u, err := h.service.Create(ctx, p, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(u))
}

// HandleList returns one page of accounts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := models.ParseListQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	users, total, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list users failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToListResponse(users, total, filter))
}

// HandleGet returns one account by ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(ctx, p, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get user failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(u))
}

// HandleUpdate applies a partial update to an account.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateUserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	u, err := h.service.Update(ctx, p, userID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update user failed", "error", err,
			"request_id", requestID, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(u))
}

// HandleDeactivate disables an account.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Deactivate(ctx, p, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "deactivate user failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(u))
}

// HandleDelete permanently removes an account.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, p, userID); err != nil {
		h.logger.ErrorContext(ctx, "delete user failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleStats returns aggregate account counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "user stats failed", "error", err,
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// principalFrom extracts the authenticated principal. The auth
// middleware guarantees one; a miss indicates a routing bug.
func principalFrom(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Not authenticated"))
		return auth.Principal{}, false
	}
	return p, true
}

func pathUserID(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	userID, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "user_id must be a valid UUID"))
		return domain.UserID{}, false
	}
	return userID, true
}
