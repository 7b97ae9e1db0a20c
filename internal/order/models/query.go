package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
)

// Pagination and sorting bounds for order listings.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSortBy = "created_at"
)

// sortFields whitelists sort_by values; anything else falls back to
// created_at so no client input ever reaches the SQL ORDER BY clause.
var sortFields = map[string]struct{}{
	"created_at": {},
	"updated_at": {},
	"total":      {},
	"status":     {},
}

// ListFilter is the clamped, whitelisted set of listing parameters the
// stores consume. A zero UserID means no owner restriction.
type ListFilter struct {
	Page          int
	Size          int
	Status        Status
	UserID        domain.UserID
	PaymentStatus PaymentStatus
	SortBy        string
	SortOrder     string
}

// Offset is the row offset implied by page and size.
func (f ListFilter) Offset() int { return (f.Page - 1) * f.Size }

// ParseListQuery builds a ListFilter from raw query parameters.
// Out-of-range numbers are clamped; unparseable ones are rejected with a
// validation error. Unknown sort fields and orders fall back to the
// defaults.
func ParseListQuery(values url.Values) (ListFilter, error) {
	f := ListFilter{
		Page:      DefaultPage,
		Size:      DefaultPageSize,
		SortBy:    DefaultSortBy,
		SortOrder: SortDesc,
	}

	page, err := intParam(values, "page", DefaultPage)
	if err != nil {
		return ListFilter{}, err
	}
	if page < 1 {
		page = 1
	}
	f.Page = page

	size, err := intParam(values, "size", DefaultPageSize)
	if err != nil {
		return ListFilter{}, err
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	f.Size = size

	f.Status = Status(strings.ToLower(strings.TrimSpace(values.Get("status"))))
	f.PaymentStatus = PaymentStatus(strings.ToLower(strings.TrimSpace(values.Get("payment_status"))))

	if raw := strings.TrimSpace(values.Get("user_id")); raw != "" {
		userID, err := domain.ParseUserID(raw)
		if err != nil {
			return ListFilter{}, dErrors.New(dErrors.CodeValidation, "user_id must be a valid UUID")
		}
		f.UserID = userID
	}

	if sortBy := strings.TrimSpace(values.Get("sort_by")); sortBy != "" {
		if _, ok := sortFields[sortBy]; ok {
			f.SortBy = sortBy
		}
	}
	if order := strings.ToLower(strings.TrimSpace(values.Get("sort_order"))); order == SortAsc {
		f.SortOrder = SortAsc
	}

	return f, nil
}

func intParam(values url.Values, name string, fallback int) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

// Pages computes the page count for a result set: ceil(total/size), and
// 0 when nothing matched.
func Pages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
