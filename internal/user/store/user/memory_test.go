package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/user/models"
	"meridian/pkg/domain"
	"meridian/pkg/platform/sentinel"
)

var baseTime = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func mkUser(email, username, first, last string, role models.Role, active bool, createdAt time.Time) *models.User {
	return &models.User{
		ID:             domain.NewUserID(),
		Email:          email,
		Username:       username,
		HashedPassword: "hashed",
		FirstName:      first,
		LastName:       last,
		Role:           role,
		IsActive:       active,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func baseFilter() models.ListFilter {
	return models.ListFilter{
		Page:      models.DefaultPage,
		Size:      models.DefaultPageSize,
		SortBy:    models.DefaultSortBy,
		SortOrder: models.SortAsc,
	}
}

func TestCreate_Success(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))

	found, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", found.Email)
	assert.Equal(t, "johndoe", found.Username)
}

func TestCreate_DuplicateEmailReturnsConflict(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)))

	err := store.Create(ctx, mkUser("John@Example.COM", "other", "Other", "User", models.RoleUser, true, baseTime))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestCreate_DuplicateUsernameReturnsConflict(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)))

	err := store.Create(ctx, mkUser("other@example.com", "JohnDoe", "Other", "User", models.RoleUser, true, baseTime))
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestGetByID_NotFound(t *testing.T) {
	store := NewInMemory()

	_, err := store.GetByID(context.Background(), domain.NewUserID())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetByEmail_CaseInsensitive(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))

	found, err := store.GetByEmail(ctx, "JOHN@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = store.GetByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestGetByUsername_CaseInsensitive(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))

	found, err := store.GetByUsername(ctx, "JohnDoe")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestUpdate_RewritesIndexes(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))

	u.Email = "renamed@example.com"
	u.Username = "renamed"
	require.NoError(t, store.Update(ctx, u))

	found, err := store.GetByEmail(ctx, "renamed@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = store.GetByEmail(ctx, "john@example.com")
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	// The old identifiers are free for someone else now.
	require.NoError(t, store.Create(ctx, mkUser("john@example.com", "johndoe", "New", "Owner", models.RoleUser, true, baseTime)))
}

func TestUpdate_RejectsTakenEmail(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)))
	other := mkUser("jane@example.com", "janedoe", "Jane", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, other))

	other.Email = "John@Example.com"
	err := store.Update(ctx, other)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestUpdate_NotFound(t *testing.T) {
	store := NewInMemory()

	err := store.Update(context.Background(), mkUser("ghost@example.com", "ghost", "", "", models.RoleUser, true, baseTime))
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDelete_FreesIndexes(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))
	require.NoError(t, store.Delete(ctx, u.ID))

	_, err := store.GetByID(ctx, u.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Create(ctx, mkUser("john@example.com", "johndoe", "New", "Owner", models.RoleUser, true, baseTime)))
}

func TestDelete_NotFound(t *testing.T) {
	store := NewInMemory()

	err := store.Delete(context.Background(), domain.NewUserID())
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	u := mkUser("john@example.com", "johndoe", "John", "Doe", models.RoleUser, true, baseTime)
	require.NoError(t, store.Create(ctx, u))

	found, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	found.FirstName = "Mutated"

	again, err := store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "John", again.FirstName)
}

func seedListUsers(t *testing.T, store *InMemory) {
	t.Helper()
	ctx := context.Background()
	users := []*models.User{
		mkUser("alice@example.com", "alice", "Alice", "Anderson", models.RoleAdmin, true, baseTime),
		mkUser("bob@example.com", "bob", "Bob", "Brown", models.RoleUser, true, baseTime.Add(1*time.Minute)),
		mkUser("carol@example.com", "carol", "Carol", "Clark", models.RoleUser, false, baseTime.Add(2*time.Minute)),
		mkUser("dave@example.com", "dave", "Dave", "Davis", models.RoleManager, true, baseTime.Add(3*time.Minute)),
		mkUser("erin@example.com", "erin", "Erin", "Evans", models.RoleUser, true, baseTime.Add(4*time.Minute)),
	}
	for _, u := range users {
		require.NoError(t, store.Create(ctx, u))
	}
}

func TestList_DefaultSortIsCreatedAt(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)

	users, total, err := store.List(context.Background(), baseFilter())
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, users, 5)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "erin", users[4].Username)
}

func TestList_SortDescending(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)

	filter := baseFilter()
	filter.SortOrder = models.SortDesc
	users, _, err := store.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, users, 5)
	assert.Equal(t, "erin", users[0].Username)
	assert.Equal(t, "alice", users[4].Username)
}

func TestList_SortByEmail(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)

	filter := baseFilter()
	filter.SortBy = "email"
	users, _, err := store.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, users, 5)
	assert.Equal(t, "alice@example.com", users[0].Email)
	assert.Equal(t, "erin@example.com", users[4].Email)
}

func TestList_SearchMatchesNameEmailUsername(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)
	ctx := context.Background()

	filter := baseFilter()
	filter.Search = "ANDERSON"
	users, total, err := store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	filter.Search = "bob@"
	users, _, err = store.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)
}

func TestList_FilterByRoleAndActive(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)
	ctx := context.Background()

	filter := baseFilter()
	filter.Role = models.RoleUser
	_, total, err := store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	inactive := false
	filter = baseFilter()
	filter.IsActive = &inactive
	users, total, err := store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestList_Pagination(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)
	ctx := context.Background()

	filter := baseFilter()
	filter.Size = 2
	users, total, err := store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)

	filter.Page = 3
	users, total, err = store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, users, 1)
	assert.Equal(t, "erin", users[0].Username)

	// Past the last page: empty slice, total intact.
	filter.Page = 9
	users, total, err = store.List(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, users)
}

func TestCounts(t *testing.T) {
	store := NewInMemory()
	seedListUsers(t, store)
	ctx := context.Background()

	total, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	active, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, active)

	verified, err := store.CountVerified(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, verified)

	recent, err := store.CountCreatedSince(ctx, baseTime.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, recent)
}
