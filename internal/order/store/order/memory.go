// Package order provides the order storage backends. Both keep the
// same contract: sentinel errors for not-found and duplicates, and
// duplicate detection atomic with the insert.
package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"meridian/internal/order/models"
	"meridian/pkg/domain"
	"meridian/pkg/platform/sentinel"
)

// InMemory stores orders in process memory for tests and the demo
// environment. The order-number index is updated under the same lock as
// the record itself, so uniqueness checks cannot race inserts.
type InMemory struct {
	mu        sync.RWMutex
	orders    map[domain.OrderID]*models.Order
	numberIdx map[string]domain.OrderID
}

// NewInMemory creates an empty in-memory order store.
func NewInMemory() *InMemory {
	return &InMemory{
		orders:    make(map[domain.OrderID]*models.Order),
		numberIdx: make(map[string]domain.OrderID),
	}
}

// Create inserts the order if its order number is free.
func (s *InMemory) Create(_ context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	number := strings.ToUpper(o.OrderNumber)
	if _, exists := s.numberIdx[number]; exists {
		return fmt.Errorf("order number already in use: %w", sentinel.ErrConflict)
	}

	s.orders[o.ID] = clone(o)
	s.numberIdx[number] = o.ID
	return nil
}

func (s *InMemory) GetByID(_ context.Context, orderID domain.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.orders[orderID]; ok {
		return clone(o), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) GetByOrderNumber(_ context.Context, number string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.numberIdx[strings.ToUpper(number)]; ok {
		return clone(s.orders[id]), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update replaces the stored record. The order number is immutable once
// assigned, so the index never needs rewriting.
func (s *InMemory) Update(_ context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.orders[o.ID] = clone(o)
	return nil
}

func (s *InMemory) Delete(_ context.Context, orderID domain.OrderID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.numberIdx, strings.ToUpper(o.OrderNumber))
	delete(s.orders, orderID)
	return nil
}

// List applies filters, sorting and pagination in memory, returning the
// page and the pre-pagination match count.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Order, int, error) {
	s.mu.RLock()
	matched := make([]*models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if matches(o, filter) {
			matched = append(matched, clone(o))
		}
	}
	s.mu.RUnlock()

	sortOrders(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []*models.Order{}, total, nil
	}
	end := start + filter.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matches(o *models.Order, filter models.ListFilter) bool {
	if filter.Status != "" && o.Status != filter.Status {
		return false
	}
	if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
		return false
	}
	if !filter.UserID.IsNil() && o.UserID != filter.UserID {
		return false
	}
	return true
}

func sortOrders(orders []*models.Order, sortBy, sortOrder string) {
	less := lessFunc(sortBy)
	asc := sortOrder == models.SortAsc
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if !asc {
			a, b = b, a
		}
		switch {
		case less(a, b):
			return true
		case less(b, a):
			return false
		default:
			// Stable tie-break so pages never overlap.
			return a.ID.String() < b.ID.String()
		}
	})
}

func lessFunc(sortBy string) func(a, b *models.Order) bool {
	switch sortBy {
	case "total":
		return func(a, b *models.Order) bool { return a.TotalCents < b.TotalCents }
	case "status":
		return func(a, b *models.Order) bool { return a.Status < b.Status }
	case "updated_at":
		return func(a, b *models.Order) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b *models.Order) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func clone(o *models.Order) *models.Order {
	c := *o
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
