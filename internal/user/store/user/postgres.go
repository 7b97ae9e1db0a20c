package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"meridian/internal/user/models"
	"meridian/pkg/domain"
	"meridian/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, email, username, hashed_password, first_name, last_name, role,
		is_active, is_superuser, is_verified, phone_number, bio, avatar_url,
		last_login_at, created_at, updated_at`

// PostgresStore persists accounts in PostgreSQL. Uniqueness of email
// and username is enforced by the lower() unique indexes, so concurrent
// registrations surface as a conflict rather than racing past the
// service-level duplicate check.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed account store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID),
		u.Email,
		u.Username,
		u.HashedPassword,
		u.FirstName,
		u.LastName,
		string(u.Role),
		u.IsActive,
		u.IsSuperuser,
		u.IsVerified,
		nullStr(u.PhoneNumber),
		nullStr(u.Bio),
		nullStr(u.AvatarURL),
		u.LastLoginAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email or username already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, userID domain.UserID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
	`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(email) = lower($1)
	`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE lower(username) = lower($1)
	`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	query := `
		UPDATE users
		SET email = $2, username = $3, hashed_password = $4, first_name = $5,
			last_name = $6, role = $7, is_active = $8, is_superuser = $9,
			is_verified = $10, phone_number = $11, bio = $12, avatar_url = $13,
			last_login_at = $14, updated_at = $15
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID),
		u.Email,
		u.Username,
		u.HashedPassword,
		u.FirstName,
		u.LastName,
		string(u.Role),
		u.IsActive,
		u.IsSuperuser,
		u.IsVerified,
		nullStr(u.PhoneNumber),
		nullStr(u.Bio),
		nullStr(u.AvatarURL),
		u.LastLoginAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email or username already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID domain.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns one page of accounts plus the total match count. The
// sort column is resolved through a whitelist here as well, so a caller
// bypassing query parsing can never inject into ORDER BY.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.User, int, error) {
	args := []any{}
	where := make([]string, 0, 3)
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR username ILIKE $%d)",
			n, n, n, n,
		))
	}
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM users %s`, clause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, filter.Size)
	limitPos := len(args)
	args = append(args, filter.Offset())
	offsetPos := len(args)
	query := fmt.Sprintf(`
		SELECT `+userColumns+`
		FROM users
		%s
		ORDER BY %s, id
		LIMIT $%d OFFSET $%d
	`, clause, orderClause(filter.SortBy, filter.SortOrder), limitPos, offsetPos)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0, filter.Size)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	return s.countQuery(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *PostgresStore) CountActive(ctx context.Context) (int, error) {
	return s.countQuery(ctx, `SELECT COUNT(*) FROM users WHERE is_active`)
}

func (s *PostgresStore) CountVerified(ctx context.Context) (int, error) {
	return s.countQuery(ctx, `SELECT COUNT(*) FROM users WHERE is_verified`)
}

func (s *PostgresStore) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return s.countQuery(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since)
}

func (s *PostgresStore) countQuery(ctx context.Context, query string, args ...any) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func orderClause(sortBy, sortOrder string) string {
	dir := "ASC"
	if sortOrder == models.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "email":
		return "lower(email) " + dir
	case "username":
		return "lower(username) " + dir
	case "full_name":
		return fmt.Sprintf("lower(first_name) %s, lower(last_name) %s", dir, dir)
	case "last_login_at":
		return "last_login_at " + dir
	case "updated_at":
		return "updated_at " + dir
	default:
		return "created_at " + dir
	}
}

type userRow interface {
	Scan(dest ...any) error
}

func scanUser(row userRow) (*models.User, error) {
	var (
		u           models.User
		userID      uuid.UUID
		role        string
		phoneNumber sql.NullString
		bio         sql.NullString
		avatarURL   sql.NullString
		lastLogin   sql.NullTime
	)
	if err := row.Scan(
		&userID,
		&u.Email,
		&u.Username,
		&u.HashedPassword,
		&u.FirstName,
		&u.LastName,
		&role,
		&u.IsActive,
		&u.IsSuperuser,
		&u.IsVerified,
		&phoneNumber,
		&bio,
		&avatarURL,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.ID = domain.UserID(userID)
	u.Role = models.Role(role)
	u.PhoneNumber = phoneNumber.String
	u.Bio = bio.String
	u.AvatarURL = avatarURL.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
