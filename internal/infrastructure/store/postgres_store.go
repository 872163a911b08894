package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/ec-order-core/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// ConnectPostgres opens a pooled connection and verifies it.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		script, err := migrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", entry.Name(), err)
		}
	}
	return nil
}

const orderColumns = `id, user_id, customer, items, delivery_info, payment_method, payment_details,
	status, tracking, received_confirmation, subtotal, delivery_fee, total, created_at, updated_at`

type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

func (s *PostgresOrderStore) Create(ctx context.Context, o *model.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	delivery, err := json.Marshal(o.DeliveryInfo)
	if err != nil {
		return err
	}
	payment, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return err
	}
	tracking, err := nullableJSON(o.Tracking)
	if err != nil {
		return err
	}
	receipt, err := nullableJSON(o.ReceivedConfirmation)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, customer, items, delivery_info, payment_method,
			payment_status, payment_details, status, tracking, received_confirmation,
			receipt_confirmed, subtotal, delivery_fee, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.UserID, customer, items, delivery, string(o.PaymentMethod),
		string(o.PaymentDetails.Status), payment, string(o.Status), tracking, receipt,
		o.Confirmed(), o.Subtotal, o.DeliveryFee, o.Total, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) FindByID(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return o, nil
}

func (s *PostgresOrderStore) FindByUserID(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (s *PostgresOrderStore) FindAll(ctx context.Context) ([]*model.Order, error) {
	return s.query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (s *PostgresOrderStore) FindByPaymentStatus(ctx context.Context, status model.PaymentStatus, updatedBefore time.Time, limit int) ([]*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders
		WHERE payment_status = $1 AND updated_at < $2
		ORDER BY created_at DESC`
	args := []any{string(status), updatedBefore}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

func (s *PostgresOrderStore) query(ctx context.Context, q string, args ...any) ([]*model.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ConditionalUpdate issues one UPDATE whose WHERE clause carries the expected
// pre-state; zero returned rows means the row is missing or did not match.
func (s *PostgresOrderStore) ConditionalUpdate(ctx context.Context, id string, match OrderMatch, patch OrderPatch) (*model.Order, error) {
	q, args, err := buildConditionalUpdate(id, match, patch)
	if err != nil {
		return nil, err
	}

	o, err := scanOrder(s.db.QueryRowContext(ctx, q, args...))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrNoMatch
}

func buildConditionalUpdate(id string, match OrderMatch, patch OrderPatch) (string, []any, error) {
	var (
		sets  []string
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sets = append(sets, "updated_at = "+arg(patch.UpdatedAt))
	if patch.Status != nil {
		sets = append(sets, "status = "+arg(string(*patch.Status)))
	}
	if patch.Tracking != nil {
		data, err := json.Marshal(patch.Tracking)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, "tracking = "+arg(data))
	}
	if patch.ReceivedConfirmation != nil {
		data, err := json.Marshal(patch.ReceivedConfirmation)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, "received_confirmation = "+arg(data))
		sets = append(sets, "receipt_confirmed = "+arg(patch.ReceivedConfirmation.Confirmed))
	}
	if patch.Payment != nil {
		if patch.Payment.Status != nil {
			sets = append(sets, "payment_status = "+arg(string(*patch.Payment.Status)))
		}
		data, err := json.Marshal(patch.Payment.fields())
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, "payment_details = payment_details || "+arg(data)+"::jsonb")
	}

	conds = append(conds, "id = "+arg(id))
	if len(match.StatusIn) > 0 {
		statuses := make([]string, len(match.StatusIn))
		for i, st := range match.StatusIn {
			statuses[i] = string(st)
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if len(match.PaymentStatusIn) > 0 {
		statuses := make([]string, len(match.PaymentStatusIn))
		for i, st := range match.PaymentStatusIn {
			statuses[i] = string(st)
		}
		conds = append(conds, "payment_status = ANY("+arg(pq.Array(statuses))+")")
	}
	if match.ReceiptConfirmed != nil {
		conds = append(conds, "receipt_confirmed = "+arg(*match.ReceiptConfirmed))
	}

	q := "UPDATE orders SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(conds, " AND ") +
		" RETURNING " + orderColumns
	return q, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var (
		o                                  model.Order
		customer, items, delivery, payment []byte
		tracking, receipt                  []byte
		paymentMethod, status              string
	)
	err := row.Scan(&o.ID, &o.UserID, &customer, &items, &delivery, &paymentMethod, &payment,
		&status, &tracking, &receipt, &o.Subtotal, &o.DeliveryFee, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.PaymentMethod = model.PaymentMethod(paymentMethod)
	o.Status = model.Status(status)
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(delivery, &o.DeliveryInfo); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payment, &o.PaymentDetails); err != nil {
		return nil, err
	}
	if len(tracking) > 0 {
		o.Tracking = &model.Tracking{}
		if err := json.Unmarshal(tracking, o.Tracking); err != nil {
			return nil, err
		}
	}
	if len(receipt) > 0 {
		o.ReceivedConfirmation = &model.ReceivedConfirmation{}
		if err := json.Unmarshal(receipt, o.ReceivedConfirmation); err != nil {
			return nil, err
		}
	}
	return &o, nil
}

// nullableJSON encodes v, mapping nil sub-records to SQL NULL.
func nullableJSON(v any) (any, error) {
	switch t := v.(type) {
	case *model.Tracking:
		if t == nil {
			return nil, nil
		}
	case *model.ReceivedConfirmation:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

type PostgresNotificationStore struct {
	db *sql.DB
}

func NewPostgresNotificationStore(db *sql.DB) *PostgresNotificationStore {
	return &PostgresNotificationStore{db: db}
}

const notificationColumns = `id, type, order_id, customer, message, note, condition_checks, read, created_at`

func (s *PostgresNotificationStore) Create(ctx context.Context, n *model.Notification) error {
	customer, err := json.Marshal(n.Customer)
	if err != nil {
		return err
	}
	checks, err := json.Marshal(n.ConditionChecks)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.Type, n.OrderID, customer, n.Message, n.Note, checks, n.Read, n.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *PostgresNotificationStore) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications`
	if unreadOnly {
		q += ` WHERE read = FALSE`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresNotificationStore) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 RETURNING `+notificationColumns, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE read = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresNotificationStore) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE read = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	var (
		n                model.Notification
		customer, checks []byte
	)
	if err := row.Scan(&n.ID, &n.Type, &n.OrderID, &customer, &n.Message, &n.Note, &checks, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customer, &n.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(checks, &n.ConditionChecks); err != nil {
		return nil, err
	}
	return &n, nil
}
