package models

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	dErrors "meridian/pkg/domain-errors"
)

// Pagination and sorting bounds for user listings.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSortBy = "created_at"
)

// sortFields is the whitelist of accepted sort_by values. Anything else
// silently falls back to created_at; filter values are never spliced
// into SQL.
var sortFields = map[string]struct{}{
	"created_at":    {},
	"updated_at":    {},
	"email":         {},
	"username":      {},
	"full_name":     {},
	"last_login_at": {},
}

// ListFilter is the clamped, whitelisted set of listing parameters the
// stores consume.
type ListFilter struct {
	Page      int
	Size      int
	Search    string
	Role      Role
	IsActive  *bool
	SortBy    string
	SortOrder string
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

	f.Search = strings.TrimSpace(values.Get("search"))
	f.Role = Role(strings.TrimSpace(values.Get("role")))

	if raw := values.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, dErrors.New(dErrors.CodeValidation, "is_active must be a boolean")
		}
		f.IsActive = &active
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
