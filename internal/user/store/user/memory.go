// Package user provides the account storage backends. Both keep the
// same contract: sentinel errors for not-found and duplicates, and
// duplicate detection atomic with the insert.
package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"meridian/internal/user/models"
	"meridian/pkg/domain"
	"meridian/pkg/platform/sentinel"
)

// InMemory stores accounts in process memory for tests and the demo
// environment. Email and username indexes are updated under the same
// lock as the record itself, so uniqueness checks cannot race inserts.
type InMemory struct {
	mu          sync.RWMutex
	users       map[domain.UserID]*models.User
	emailIdx    map[string]domain.UserID
	usernameIdx map[string]domain.UserID
}

// NewInMemory creates an empty in-memory account store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:       make(map[domain.UserID]*models.User),
		emailIdx:    make(map[string]domain.UserID),
		usernameIdx: make(map[string]domain.UserID),
	}
}

// Create inserts the account if neither email nor username is taken
// (case-insensitive).
func (s *InMemory) Create(_ context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	username := strings.ToLower(u.Username)
	if _, exists := s.emailIdx[email]; exists {
		return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
	}
	if _, exists := s.usernameIdx[username]; exists {
		return fmt.Errorf("username already in use: %w", sentinel.ErrConflict)
	}

	s.users[u.ID] = clone(u)
	s.emailIdx[email] = u.ID
	s.usernameIdx[username] = u.ID
	return nil
}

func (s *InMemory) GetByID(_ context.Context, userID domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.emailIdx[strings.ToLower(email)]; ok {
		return clone(s.users[id]), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) GetByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.usernameIdx[strings.ToLower(username)]; ok {
		return clone(s.users[id]), nil
	}
	return nil, sentinel.ErrNotFound
}

// Update replaces the stored record. Changing email or username keeps
// the uniqueness indexes consistent, rejecting values owned by another
// account.
func (s *InMemory) Update(_ context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[u.ID]
	if !ok {
		return sentinel.ErrNotFound
	}

	newEmail := strings.ToLower(u.Email)
	newUsername := strings.ToLower(u.Username)
	if owner, exists := s.emailIdx[newEmail]; exists && owner != u.ID {
		return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
	}
	if owner, exists := s.usernameIdx[newUsername]; exists && owner != u.ID {
		return fmt.Errorf("username already in use: %w", sentinel.ErrConflict)
	}

	delete(s.emailIdx, strings.ToLower(current.Email))
	delete(s.usernameIdx, strings.ToLower(current.Username))
	s.users[u.ID] = clone(u)
	s.emailIdx[newEmail] = u.ID
	s.usernameIdx[newUsername] = u.ID
	return nil
}

func (s *InMemory) Delete(_ context.Context, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.emailIdx, strings.ToLower(u.Email))
	delete(s.usernameIdx, strings.ToLower(u.Username))
	delete(s.users, userID)
	return nil
}

// List applies search, filters, sorting and pagination in memory,
// returning the page and the pre-pagination match count.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.User, int, error) {
	s.mu.RLock()
	matched := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if matches(u, filter) {
			matched = append(matched, clone(u))
		}
	}
	s.mu.RUnlock()

	sortUsers(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []*models.User{}, total, nil
	}
	end := start + filter.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *InMemory) CountActive(_ context.Context) (int, error) {
	return s.countWhere(func(u *models.User) bool { return u.IsActive }), nil
}

func (s *InMemory) CountVerified(_ context.Context) (int, error) {
	return s.countWhere(func(u *models.User) bool { return u.IsVerified }), nil
}

func (s *InMemory) CountCreatedSince(_ context.Context, since time.Time) (int, error) {
	return s.countWhere(func(u *models.User) bool { return !u.CreatedAt.Before(since) }), nil
}

func (s *InMemory) countWhere(pred func(*models.User) bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if pred(u) {
			n++
		}
	}
	return n
}

func matches(u *models.User, filter models.ListFilter) bool {
	if filter.Role != "" && u.Role != filter.Role {
		return false
	}
	if filter.IsActive != nil && u.IsActive != *filter.IsActive {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(u.FirstName), needle) &&
			!strings.Contains(strings.ToLower(u.LastName), needle) &&
			!strings.Contains(strings.ToLower(u.Email), needle) &&
			!strings.Contains(strings.ToLower(u.Username), needle) {
			return false
		}
	}
	return true
}

func sortUsers(users []*models.User, sortBy, sortOrder string) {
	less := lessFunc(sortBy)
	asc := sortOrder == models.SortAsc
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
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

func lessFunc(sortBy string) func(a, b *models.User) bool {
	switch sortBy {
	case "email":
		return func(a, b *models.User) bool {
			return strings.ToLower(a.Email) < strings.ToLower(b.Email)
		}
	case "username":
		return func(a, b *models.User) bool {
			return strings.ToLower(a.Username) < strings.ToLower(b.Username)
		}
	case "full_name":
		return func(a, b *models.User) bool {
			return strings.ToLower(a.FullName()) < strings.ToLower(b.FullName())
		}
	case "last_login_at":
		return func(a, b *models.User) bool {
			return loginTime(a).Before(loginTime(b))
		}
	case "updated_at":
		return func(a, b *models.User) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b *models.User) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func loginTime(u *models.User) time.Time {
	if u.LastLoginAt == nil {
		return time.Time{}
	}
	return *u.LastLoginAt
}

func clone(u *models.User) *models.User {
	c := *u
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
