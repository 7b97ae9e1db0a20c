package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"meridian/internal/order/models"
	"meridian/pkg/domain"
	"meridian/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const orderColumns = `id, order_number, user_id, status, subtotal_cents, tax_cents,
		shipping_cents, discount_cents, total_cents, currency, shipping_address,
		billing_address, payment_method, payment_status, tracking_number, notes,
		shipped_at, delivered_at, created_at, updated_at`

// PostgresStore persists orders in PostgreSQL. Order-number uniqueness
// is enforced by the database index, so duplicate inserts surface as a
// conflict instead of silently overwriting.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed order store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(o.ID),
		o.OrderNumber,
		uuid.UUID(o.UserID),
		string(o.Status),
		o.SubtotalCents,
		o.TaxCents,
		o.ShippingCents,
		o.DiscountCents,
		o.TotalCents,
		o.Currency,
		nullStr(o.ShippingAddress),
		nullStr(o.BillingAddress),
		nullStr(o.PaymentMethod),
		string(o.PaymentStatus),
		nullStr(o.TrackingNumber),
		nullStr(o.Notes),
		o.ShippedAt,
		o.DeliveredAt,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("order number already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, orderID domain.OrderID) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
	`
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, uuid.UUID(orderID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) GetByOrderNumber(ctx context.Context, number string) (*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE upper(order_number) = upper($1)
	`
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) Update(ctx context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("order is required")
	}
	query := `
		UPDATE orders
		SET status = $2, subtotal_cents = $3, tax_cents = $4, shipping_cents = $5,
			discount_cents = $6, total_cents = $7, currency = $8,
			shipping_address = $9, billing_address = $10, payment_method = $11,
			payment_status = $12, tracking_number = $13, notes = $14,
			shipped_at = $15, delivered_at = $16, updated_at = $17
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(o.ID),
		string(o.Status),
		o.SubtotalCents,
		o.TaxCents,
		o.ShippingCents,
		o.DiscountCents,
		o.TotalCents,
		o.Currency,
		nullStr(o.ShippingAddress),
		nullStr(o.BillingAddress),
		nullStr(o.PaymentMethod),
		string(o.PaymentStatus),
		nullStr(o.TrackingNumber),
		nullStr(o.Notes),
		o.ShippedAt,
		o.DeliveredAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, orderID domain.OrderID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, uuid.UUID(orderID))
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns one page of orders plus the total match count. The sort
// column is resolved through a whitelist here as well, so a caller
// bypassing query parsing can never inject into ORDER BY.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Order, int, error) {
	args := []any{}
	where := make([]string, 0, 3)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PaymentStatus != "" {
		args = append(args, string(filter.PaymentStatus))
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if !filter.UserID.IsNil() {
		args = append(args, uuid.UUID(filter.UserID))
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM orders %s`, clause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, filter.Size)
	limitPos := len(args)
	args = append(args, filter.Offset())
	offsetPos := len(args)
	query := fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders
		%s
		ORDER BY %s, id
		LIMIT $%d OFFSET $%d
	`, clause, orderClause(filter.SortBy, filter.SortOrder), limitPos, offsetPos)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0, filter.Size)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, total, nil
}

func orderClause(sortBy, sortOrder string) string {
	dir := "ASC"
	if sortOrder == models.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "total":
		return "total_cents " + dir
	case "status":
		return "status " + dir
	case "updated_at":
		return "updated_at " + dir
	default:
		return "created_at " + dir
	}
}

type orderRow interface {
	Scan(dest ...any) error
}

func scanOrder(row orderRow) (*models.Order, error) {
	var (
		o               models.Order
		orderID         uuid.UUID
		userID          uuid.UUID
		status          string
		paymentStatus   string
		shippingAddress sql.NullString
		billingAddress  sql.NullString
		paymentMethod   sql.NullString
		trackingNumber  sql.NullString
		notes           sql.NullString
		shippedAt       sql.NullTime
		deliveredAt     sql.NullTime
	)
	if err := row.Scan(
		&orderID,
		&o.OrderNumber,
		&userID,
		&status,
		&o.SubtotalCents,
		&o.TaxCents,
		&o.ShippingCents,
		&o.DiscountCents,
		&o.TotalCents,
		&o.Currency,
		&shippingAddress,
		&billingAddress,
		&paymentMethod,
		&paymentStatus,
		&trackingNumber,
		&notes,
		&shippedAt,
		&deliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.ID = domain.OrderID(orderID)
	o.UserID = domain.UserID(userID)
	o.Status = models.Status(status)
	o.PaymentStatus = models.PaymentStatus(paymentStatus)
	o.ShippingAddress = shippingAddress.String
	o.BillingAddress = billingAddress.String
	o.PaymentMethod = paymentMethod.String
	o.TrackingNumber = trackingNumber.String
	o.Notes = notes.String
	if shippedAt.Valid {
		t := shippedAt.Time
		o.ShippedAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
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
