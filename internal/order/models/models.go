// Package models defines the order domain model, its status machine,
// and the request/response shapes of the order API.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"meridian/pkg/domain"
)

// Status is an order's position in the fulfilment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// transitions is the full status machine. Cancelled and refunded are
// terminal; a delivered order can only move to refunded.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the status machine permits moving
// from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus tracks the payment side of an order independently of
// fulfilment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Order is a single purchase. Monetary amounts are integer cents; the
// stored total is always subtotal + tax + shipping - discount.
type Order struct {
	ID              domain.OrderID
	OrderNumber     string
	UserID          domain.UserID
	Status          Status
	SubtotalCents   int64
	TaxCents        int64
	ShippingCents   int64
	DiscountCents   int64
	TotalCents      int64
	Currency        string
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	TrackingNumber  string
	Notes           string
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPaid reports whether payment has gone through.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid || o.PaymentStatus == PaymentCompleted
}

// IsShipped reports whether the order has left the warehouse.
func (o *Order) IsShipped() bool {
	return o.Status == StatusShipped || o.Status == StatusDelivered
}

// IsCompleted reports whether the order reached the customer.
func (o *Order) IsCompleted() bool { return o.Status == StatusDelivered }

// IsCancelled reports whether the order was cancelled or refunded.
func (o *Order) IsCancelled() bool {
	return o.Status == StatusCancelled || o.Status == StatusRefunded
}

// CanBeCancelled reports whether the customer may still cancel.
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// CanBeShipped reports whether the order is ready to ship: confirmed or
// in processing, and paid for.
func (o *Order) CanBeShipped() bool {
	return (o.Status == StatusConfirmed || o.Status == StatusProcessing) && o.IsPaid()
}

// ApplyStatus moves the order to next and stamps the shipped/delivered
// timestamps the first time those states are reached. Legality of the
// transition is the caller's concern.
func (o *Order) ApplyStatus(next Status, now time.Time) {
	o.Status = next
	switch {
	case next == StatusShipped && o.ShippedAt == nil:
		t := now
		o.ShippedAt = &t
	case next == StatusDelivered && o.DeliveredAt == nil:
		t := now
		o.DeliveredAt = &t
	}
}

// NewOrderNumber mints a human-quotable order reference such as
// ORD-1C9A0F42B7D3.
func NewOrderNumber() string {
	fragment := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "ORD-" + strings.ToUpper(fragment)
}
