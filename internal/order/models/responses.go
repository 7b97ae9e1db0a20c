package models

import "time"

// OrderResponse is the public view of an order, including the derived
// lifecycle flags clients key their UI off.
type OrderResponse struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"order_number"`
	UserID          string        `json:"user_id"`
	Status          Status        `json:"status"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	TaxCents        int64         `json:"tax_cents"`
	ShippingCents   int64         `json:"shipping_cents"`
	DiscountCents   int64         `json:"discount_cents"`
	TotalCents      int64         `json:"total_cents"`
	Currency        string        `json:"currency"`
	ShippingAddress string        `json:"shipping_address,omitempty"`
	BillingAddress  string        `json:"billing_address,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	TrackingNumber  string        `json:"tracking_number,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	IsPaid          bool          `json:"is_paid"`
	IsShipped       bool          `json:"is_shipped"`
	IsCompleted     bool          `json:"is_completed"`
	IsCancelled     bool          `json:"is_cancelled"`
	CanBeCancelled  bool          `json:"can_be_cancelled"`
	ShippedAt       *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time    `json:"delivered_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ToResponse maps an order to its public view.
func ToResponse(o *Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID.String(),
		Status:          o.Status,
		SubtotalCents:   o.SubtotalCents,
		TaxCents:        o.TaxCents,
		ShippingCents:   o.ShippingCents,
		DiscountCents:   o.DiscountCents,
		TotalCents:      o.TotalCents,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		IsPaid:          o.IsPaid(),
		IsShipped:       o.IsShipped(),
		IsCompleted:     o.IsCompleted(),
		IsCancelled:     o.IsCancelled(),
		CanBeCancelled:  o.CanBeCancelled(),
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// OrderListResponse is one page of orders plus pagination metadata.
type OrderListResponse struct {
	Items      []OrderResponse `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	TotalPages int             `json:"total_pages"`
}

// ToListResponse maps a page of orders and its pre-pagination total.
func ToListResponse(orders []*Order, total int, filter ListFilter) OrderListResponse {
	items := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, ToResponse(o))
	}
	return OrderListResponse{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Size:       filter.Size,
		TotalPages: Pages(total, filter.Size),
	}
}
