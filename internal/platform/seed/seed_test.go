package seed

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meridian/internal/user/models"
	userstore "meridian/internal/user/store/user"
	"meridian/pkg/domain"
	"meridian/pkg/requestcontext"
	"meridian/pkg/secrets"
)

func testSeeder(store *userstore.InMemory) *Seeder {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(store, logger, 4)
}

func TestRunSeedsDemoAccounts(t *testing.T) {
	store := userstore.NewInMemory()
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	require.NoError(t, testSeeder(store).Run(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, count)

	admin, err := store.GetByEmail(ctx, "john.doe@example.com")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.Equal(t, "john.doe", admin.Username)
	require.True(t, admin.IsActive)
	require.Equal(t, now, admin.CreatedAt)
	require.NoError(t, secrets.Verify(DemoPassword, admin.HashedPassword))

	manager, err := store.GetByEmail(ctx, "david.brown@example.com")
	require.NoError(t, err)
	require.Equal(t, models.RoleManager, manager.Role)
	require.Equal(t, "DevOps engineer focusing on cloud infrastructure.", manager.Bio)
}

func TestRunIsIdempotent(t *testing.T) {
	store := userstore.NewInMemory()
	ctx := context.Background()
	seeder := testSeeder(store)

	require.NoError(t, seeder.Run(ctx))
	require.NoError(t, seeder.Run(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, count)
}

func TestRunLeavesExistingDataAlone(t *testing.T) {
	store := userstore.NewInMemory()
	ctx := context.Background()

	existing := &models.User{
		ID:       domain.NewUserID(),
		Email:    "present@example.com",
		Username: "present",
		Role:     models.RoleUser,
		IsActive: true,
	}
	require.NoError(t, store.Create(ctx, existing))

	require.NoError(t, testSeeder(store).Run(ctx))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
