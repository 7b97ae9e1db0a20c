// Package handler exposes the order API under /api/v1/orders.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meridian/internal/order/models"
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/httputil"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/requestcontext"
)

// Service is the order behavior the HTTP layer depends on.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Create(ctx context.Context, actor auth.Principal, req *models.CreateOrderRequest) (*models.Order, error)
	Get(ctx context.Context, actor auth.Principal, orderID domain.OrderID) (*models.Order, error)
	GetByNumber(ctx context.Context, actor auth.Principal, number string) (*models.Order, error)
	List(ctx context.Context, actor auth.Principal, filter models.ListFilter) ([]*models.Order, int, error)
	UpdateStatus(ctx context.Context, actor auth.Principal, orderID domain.OrderID, req *models.UpdateStatusRequest) (*models.Order, error)
	UpdatePayment(ctx context.Context, actor auth.Principal, orderID domain.OrderID, req *models.UpdatePaymentRequest) (*models.Order, error)
	Cancel(ctx context.Context, actor auth.Principal, orderID domain.OrderID) (*models.Order, error)
	Delete(ctx context.Context, actor auth.Principal, orderID domain.OrderID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the order routes. Every route needs a valid token;
// fulfilment and deletion additionally need the admin role. Ownership
// checks on individual orders live in the service.
func (h *Handler) Register(r chi.Router, verifier auth.TokenVerifier) {
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier))

		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/number/{number}", h.HandleGetByNumber)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/cancel", h.HandleCancel)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))

			r.Put("/{id}/status", h.HandleUpdateStatus)
			r.Put("/{id}/payment", h.HandleUpdatePayment)
			r.Delete("/{id}", h.HandleDelete)
		})
	})
}

// HandleCreate places an order for the authenticated user.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CreateOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	o, err := h.service.Create(ctx, p, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "create order failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.ToResponse(o))
}

// HandleList returns one page of orders: the caller's own, or any
// order for administrators.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}

	filter, err := models.ParseListQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	orders, total, err := h.service.List(ctx, p, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "list orders failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToListResponse(orders, total, filter))
}

// HandleGet returns one order by ID.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.Get(ctx, p, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get order failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "order_id", orderID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(o))
}

// HandleGetByNumber resolves an order by its customer-facing reference.
func (h *Handler) HandleGetByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")

	o, err := h.service.GetByNumber(ctx, p, number)
	if err != nil {
		h.logger.ErrorContext(ctx, "get order by number failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "order_number", number)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(o))
}

// HandleUpdateStatus moves an order through the fulfilment machine.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	o, err := h.service.UpdateStatus(ctx, p, orderID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update order status failed", "error", err,
			"request_id", requestID, "order_id", orderID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(o))
}

// HandleUpdatePayment records the outcome of a payment attempt.
func (h *Handler) HandleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.UpdatePaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	o, err := h.service.UpdatePayment(ctx, p, orderID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "update order payment failed", "error", err,
			"request_id", requestID, "order_id", orderID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(o))
}

// HandleCancel withdraws an order that has not entered fulfilment.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}

	o, err := h.service.Cancel(ctx, p, orderID)
	if err != nil {
		h.logger.ErrorContext(ctx, "cancel order failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "order_id", orderID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.ToResponse(o))
}

// HandleDelete permanently removes an order.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := pathOrderID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(ctx, p, orderID); err != nil {
		h.logger.ErrorContext(ctx, "delete order failed", "error", err,
			"request_id", requestcontext.RequestID(ctx), "order_id", orderID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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

func pathOrderID(w http.ResponseWriter, r *http.Request) (domain.OrderID, bool) {
	orderID, err := domain.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "order_id must be a valid UUID"))
		return domain.OrderID{}, false
	}
	return orderID, true
}
