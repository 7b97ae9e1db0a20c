// Package service implements order management: placement, lookup,
// fulfilment transitions and cancellation. Ownership rules live here;
// route-level role gates live in the router.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"meridian/internal/audit"
	ordermetrics "meridian/internal/order/metrics"
	"meridian/internal/order/models"
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/platform/sentinel"
	"meridian/pkg/platform/tracer"
	"meridian/pkg/requestcontext"
)

// createAttempts bounds retries when a generated order number collides.
const createAttempts = 3

// Store is the order persistence the service depends on.
type Store interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, orderID domain.OrderID) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	Delete(ctx context.Context, orderID domain.OrderID) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.Order, int, error)
}

// AuditPublisher records lifecycle events off the request path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Service orchestrates the order lifecycle.
type Service struct {
	orders  Store
	logger  *slog.Logger
	audit   AuditPublisher
	metrics *ordermetrics.Metrics
	tracer  tracer.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *ordermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(orders Store, opts ...Option) *Service {
	s := &Service{orders: orders, tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create places an order for the acting user. New orders start pending
// with payment outstanding; the total is derived from the request
// amounts, never taken from the client.
func (s *Service) Create(ctx context.Context, actor auth.Principal, req *models.CreateOrderRequest) (*models.Order, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	o := &models.Order{
		ID:              domain.NewOrderID(),
		UserID:          actor.UserID,
		Status:          models.StatusPending,
		SubtotalCents:   req.SubtotalCents,
		TaxCents:        req.TaxCents,
		ShippingCents:   req.ShippingCents,
		DiscountCents:   req.DiscountCents,
		TotalCents:      req.Total(),
		Currency:        req.Currency,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.createOrder(ctx, o); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventOrderCreated, actor.UserID.String(), o.ID.String(), map[string]any{
		"order_number": o.OrderNumber,
		"total_cents":  o.TotalCents,
		"currency":     o.Currency,
	}))
	s.incrementCreated()

	return o, nil
}

// Get returns an order to its owner or an administrator.
func (s *Service) Get(ctx context.Context, actor auth.Principal, orderID domain.OrderID) (*models.Order, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order ID is required")
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, wrapOrderErr(err, "failed to load order")
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}
	return o, nil
}

// GetByNumber resolves an order by its customer-facing reference, with
// the same ownership rule as Get.
func (s *Service) GetByNumber(ctx context.Context, actor auth.Principal, number string) (*models.Order, error) {
	if number == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order number is required")
	}

	o, err := s.orders.GetByOrderNumber(ctx, number)
	if err != nil {
		return nil, wrapOrderErr(err, "failed to load order")
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}
	return o, nil
}

// List returns one page of orders and the total match count. Regular
// users only ever see their own orders; administrators see everything
// and may filter by owner.
func (s *Service) List(ctx context.Context, actor auth.Principal, filter models.ListFilter) ([]*models.Order, int, error) {
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanOrderList,
		tracer.Int("page", filter.Page),
		tracer.Int("size", filter.Size),
	)
	orders, total, err := s.orders.List(ctx, filter)
	span.End(err)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list orders")
	}
	return orders, total, nil
}

// UpdateStatus moves an order through the fulfilment machine. Repeating
// the current status is a no-op; anything the transition table forbids
// is a conflict, as is shipping an unpaid order.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, orderID domain.OrderID, req *models.UpdateStatusRequest) (*models.Order, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order ID is required")
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "status request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, wrapOrderErr(err, "failed to load order")
	}
	if req.Status == o.Status {
		return o, nil
	}
	if !o.Status.CanTransitionTo(req.Status) {
		return nil, dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("Cannot change order status from %s to %s", o.Status, req.Status))
	}
	if req.Status == models.StatusShipped && !o.CanBeShipped() {
		return nil, dErrors.New(dErrors.CodeConflict, "Cannot ship an unpaid order")
	}

	from := o.Status
	now := requestcontext.Now(ctx)
	o.ApplyStatus(req.Status, now)
	if req.TrackingNumber != "" {
		o.TrackingNumber = req.TrackingNumber
	}
	o.UpdatedAt = now
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapOrderErr(err, "failed to update order status")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventOrderStatusChanged, actor.UserID.String(), o.ID.String(), map[string]any{
		"from": string(from),
		"to":   string(o.Status),
	}))
	s.recordStatusChange(string(o.Status))

	return o, nil
}

// UpdatePayment records the outcome of a payment attempt.
func (s *Service) UpdatePayment(ctx context.Context, actor auth.Principal, orderID domain.OrderID, req *models.UpdatePaymentRequest) (*models.Order, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order ID is required")
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "payment request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, wrapOrderErr(err, "failed to load order")
	}

	from := o.PaymentStatus
	o.PaymentStatus = req.PaymentStatus
	if req.PaymentMethod != "" {
		o.PaymentMethod = req.PaymentMethod
	}
	o.UpdatedAt = requestcontext.Now(ctx)
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapOrderErr(err, "failed to update payment status")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventOrderPaymentUpdated, actor.UserID.String(), o.ID.String(), map[string]any{
		"from": string(from),
		"to":   string(o.PaymentStatus),
	}))

	return o, nil
}

// Cancel lets an owner withdraw an order that has not entered
// fulfilment. Cancelling an already-cancelled order is a no-op.
func (s *Service) Cancel(ctx context.Context, actor auth.Principal, orderID domain.OrderID) (*models.Order, error) {
	if orderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "order ID is required")
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, wrapOrderErr(err, "failed to load order")
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}
	if o.IsCancelled() {
		return o, nil
	}
	if !o.CanBeCancelled() {
		return nil, dErrors.New(dErrors.CodeConflict, "Order can no longer be cancelled")
	}

	now := requestcontext.Now(ctx)
	o.ApplyStatus(models.StatusCancelled, now)
	o.UpdatedAt = now
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, wrapOrderErr(err, "failed to cancel order")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventOrderCancelled, actor.UserID.String(), o.ID.String(), map[string]any{
		"order_number": o.OrderNumber,
	}))
	s.incrementCancellations()

	return o, nil
}

// Delete permanently removes an order.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, orderID domain.OrderID) error {
	if orderID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "order ID is required")
	}

	if err := s.orders.Delete(ctx, orderID); err != nil {
		return wrapOrderErr(err, "failed to delete order")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventOrderDeleted, actor.UserID.String(), orderID.String(), nil))
	s.incrementDeletions()

	return nil
}

// createOrder inserts with a fresh order number, regenerating on the
// rare collision.
func (s *Service) createOrder(ctx context.Context, o *models.Order) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanOrderCreate)
	var err error
	for attempt := 0; attempt < createAttempts; attempt++ {
		o.OrderNumber = models.NewOrderNumber()
		err = s.orders.Create(ctx, o)
		if err == nil {
			span.End(nil)
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			span.End(err)
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create order")
		}
	}
	span.End(err)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate order number")
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Type),
			"event", string(event.Type),
			"actor", event.Actor,
			"subject", event.Subject,
			"request_id", event.RequestID,
			"log_type", "audit",
		)
	}
	if s.audit != nil {
		s.audit.Emit(ctx, event)
	}
}

func (s *Service) incrementCreated() {
	if s.metrics != nil {
		s.metrics.Created.Inc()
	}
}

func (s *Service) recordStatusChange(to string) {
	if s.metrics != nil {
		s.metrics.RecordStatusChange(to)
	}
}

func (s *Service) incrementCancellations() {
	if s.metrics != nil {
		s.metrics.Cancellations.Inc()
	}
}

func (s *Service) incrementDeletions() {
	if s.metrics != nil {
		s.metrics.Deletions.Inc()
	}
}

func wrapOrderErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "Order not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
