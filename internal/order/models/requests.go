package models

import (
	"strings"

	dErrors "meridian/pkg/domain-errors"
	s "meridian/pkg/string"
	"meridian/pkg/validation"
)

// CreateOrderRequest is the payload for placing an order. Amounts are
// integer cents; the service computes the total.
type CreateOrderRequest struct {
	SubtotalCents   int64  `json:"subtotal_cents" validate:"required,min=1"`
	TaxCents        int64  `json:"tax_cents" validate:"min=0"`
	ShippingCents   int64  `json:"shipping_cents" validate:"min=0"`
	DiscountCents   int64  `json:"discount_cents" validate:"min=0"`
	Currency        string `json:"currency" validate:"omitempty,len=3,alpha"`
	ShippingAddress string `json:"shipping_address" validate:"max=1000"`
	BillingAddress  string `json:"billing_address" validate:"max=1000"`
	PaymentMethod   string `json:"payment_method" validate:"max=50"`
	Notes           string `json:"notes" validate:"max=2000"`
}

func (r *CreateOrderRequest) Normalize() {
	if r == nil {
		return
	}
	s.TrimStrings(&r.Currency, &r.ShippingAddress, &r.BillingAddress, &r.PaymentMethod, &r.Notes)
	r.Currency = strings.ToUpper(r.Currency)
	if r.Currency == "" {
		r.Currency = "USD"
	}
}

func (r *CreateOrderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.Total() < 0 {
		return dErrors.New(dErrors.CodeValidation, "discount_cents must not exceed the order total")
	}
	return nil
}

// Total is the amount the customer is charged.
func (r *CreateOrderRequest) Total() int64 {
	return r.SubtotalCents + r.TaxCents + r.ShippingCents - r.DiscountCents
}

// UpdateStatusRequest moves an order through the status machine.
// TrackingNumber may accompany a move to shipped.
type UpdateStatusRequest struct {
	Status         Status `json:"status" validate:"required"`
	TrackingNumber string `json:"tracking_number" validate:"max=100"`
}

func (r *UpdateStatusRequest) Normalize() {
	if r == nil {
		return
	}
	r.Status = Status(strings.ToLower(strings.TrimSpace(string(r.Status))))
	s.TrimStrings(&r.TrackingNumber)
}

func (r *UpdateStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if !r.Status.Valid() {
		return dErrors.New(dErrors.CodeValidation,
			"status must be one of [pending confirmed processing shipped delivered cancelled refunded]")
	}
	return nil
}

// UpdatePaymentRequest records the outcome of a payment attempt.
type UpdatePaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" validate:"required,oneof=pending paid completed failed refunded"`
	PaymentMethod string        `json:"payment_method" validate:"max=50"`
}

func (r *UpdatePaymentRequest) Normalize() {
	if r == nil {
		return
	}
	r.PaymentStatus = PaymentStatus(strings.ToLower(strings.TrimSpace(string(r.PaymentStatus))))
	s.TrimStrings(&r.PaymentMethod)
}

func (r *UpdatePaymentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
