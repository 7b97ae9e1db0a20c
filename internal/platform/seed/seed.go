// Package seed populates an empty user store with demo accounts so a
// fresh deployment has data to explore.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"meridian/internal/user/models"
	"meridian/pkg/domain"
	"meridian/pkg/requestcontext"
	"meridian/pkg/secrets"
)

// DemoPassword is the shared password for every seeded account.
const DemoPassword = "Password123!"

// UserStore defines the store methods seeding needs.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Count(ctx context.Context) (int, error)
}

// Seeder writes the demo fixture into a user store.
type Seeder struct {
	users      UserStore
	logger     *slog.Logger
	bcryptCost int
}

// New creates a seeder hashing passwords at the given bcrypt cost.
func New(users UserStore, logger *slog.Logger, bcryptCost int) *Seeder {
	return &Seeder{users: users, logger: logger, bcryptCost: bcryptCost}
}

// Run seeds the demo accounts. It is idempotent: a store that already
// holds users is left untouched.
func (s *Seeder) Run(ctx context.Context) error {
	count, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		s.logger.Info("skipping demo seed, store already has users", "count", count)
		return nil
	}

	// Every demo account shares one password, hashed once.
	hashed, err := secrets.Hash(DemoPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	demoUsers := []struct {
		email     string
		username  string
		firstName string
		lastName  string
		role      models.Role
		bio       string
	}{
		{"john.doe@example.com", "john.doe", "John", "Doe", models.RoleAdmin,
			"System administrator with 10+ years of experience."},
		{"jane.smith@example.com", "jane.smith", "Jane", "Smith", models.RoleManager,
			"Project manager specializing in agile methodologies."},
		{"mike.johnson@example.com", "mike.johnson", "Mike", "Johnson", models.RoleUser,
			"Frontend developer passionate about React and UX design."},
		{"sarah.wilson@example.com", "sarah.wilson", "Sarah", "Wilson", models.RoleUser,
			"Data scientist working on machine learning projects."},
		{"david.brown@example.com", "david.brown", "David", "Brown", models.RoleManager,
			"DevOps engineer focusing on cloud infrastructure."},
		{"emily.davis@example.com", "emily.davis", "Emily", "Davis", models.RoleUser,
			"Backend developer with expertise in Python and APIs."},
		{"alex.turner@example.com", "alex.turner", "Alex", "Turner", models.RoleUser,
			"Mobile app developer creating cross-platform solutions."},
		{"lisa.garcia@example.com", "lisa.garcia", "Lisa", "Garcia", models.RoleAdmin,
			"Security specialist ensuring application safety."},
	}

	now := requestcontext.Now(ctx)
	for _, u := range demoUsers {
		user := &models.User{
			ID:             domain.NewUserID(),
			Email:          u.email,
			Username:       u.username,
			HashedPassword: hashed,
			FirstName:      u.firstName,
			LastName:       u.lastName,
			Role:           u.role,
			IsActive:       true,
			IsVerified:     true,
			Bio:            u.bio,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", u.email, err)
		}
	}

	s.logger.Info("demo data seeded", "users", len(demoUsers))
	return nil
}
