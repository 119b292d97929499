// Package postgres реализует хранилище состояния пользователей и заказов
// на оплату в PostgreSQL. Схема создаётся миграциями из каталога migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

const uniqueViolation = "23505"

// Storage инкапсулирует соединение с базой данных.
type Storage struct {
	DB *sql.DB
}

// New открывает пул соединений и проверяет доступность базы.
func New(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{DB: db}, nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{DB: db}
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	const op = "storage.postgres.CheckDatabaseReady"
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'user_entitlements'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: required table user_entitlements missing", op)
	}
	return nil
}

// Get возвращает состояние пользователя; для неизвестного пользователя
// состояние по умолчанию без записи в базу.
func (s *Storage) Get(ctx context.Context, userID int64) (models.UserState, error) {
	const op = "storage.postgres.Get"

	query := `SELECT free_messages_used, expiry, unlimited, plan, messages_remaining,
	                 strike_count, muted_until, messages_total, updated_at
	          FROM user_entitlements
	          WHERE user_id = $1`
	st := models.UserState{UserID: userID}
	var expiry, mutedUntil sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(
		&st.Entitlement.FreeMessagesUsed,
		&expiry,
		&st.Entitlement.Unlimited,
		&st.Entitlement.Plan,
		&st.Entitlement.MessagesRemaining,
		&st.Moderation.StrikeCount,
		&mutedUntil,
		&st.MessagesTotal,
		&st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserState{UserID: userID}, nil
	}
	if err != nil {
		return models.UserState{}, fmt.Errorf("%s: %w", op, err)
	}
	st.Entitlement.Expiry = timePtr(expiry)
	st.Moderation.MutedUntil = timePtr(mutedUntil)
	return st, nil
}

// Upsert сохраняет состояние пользователя целиком.
func (s *Storage) Upsert(ctx context.Context, st models.UserState) error {
	const op = "storage.postgres.Upsert"

	query := `INSERT INTO user_entitlements (
	              user_id, free_messages_used, expiry, unlimited, plan, messages_remaining,
	              strike_count, muted_until, messages_total, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (user_id) DO UPDATE SET
	              free_messages_used = EXCLUDED.free_messages_used,
	              expiry             = EXCLUDED.expiry,
	              unlimited          = EXCLUDED.unlimited,
	              plan               = EXCLUDED.plan,
	              messages_remaining = EXCLUDED.messages_remaining,
	              strike_count       = EXCLUDED.strike_count,
	              muted_until        = EXCLUDED.muted_until,
	              messages_total     = EXCLUDED.messages_total,
	              updated_at         = EXCLUDED.updated_at`
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, query,
		st.UserID,
		st.Entitlement.FreeMessagesUsed,
		nullTime(st.Entitlement.Expiry),
		st.Entitlement.Unlimited,
		st.Entitlement.Plan,
		st.Entitlement.MessagesRemaining,
		st.Moderation.StrikeCount,
		nullTime(st.Moderation.MutedUntil),
		st.MessagesTotal,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SaveOrder сохраняет новый заказ на оплату.
func (s *Storage) SaveOrder(ctx context.Context, order models.PendingPaymentOrder) error {
	const op = "storage.postgres.SaveOrder"

	query := `INSERT INTO pending_orders (order_id, link_id, user_id, amount, plan, reference, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.DB.ExecContext(ctx, query,
		order.OrderID,
		order.LinkID,
		order.UserID,
		order.Amount,
		order.Plan,
		order.Reference,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrOrderExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindOrder возвращает заказ по идентификатору.
func (s *Storage) FindOrder(ctx context.Context, orderID string) (models.PendingPaymentOrder, error) {
	const op = "storage.postgres.FindOrder"

	query := `SELECT order_id, link_id, user_id, amount, plan, reference, status, created_at
	          FROM pending_orders
	          WHERE order_id = $1`
	var o models.PendingPaymentOrder
	err := s.DB.QueryRowContext(ctx, query, orderID).Scan(
		&o.OrderID, &o.LinkID, &o.UserID, &o.Amount, &o.Plan, &o.Reference, &o.Status, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingPaymentOrder{}, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}
	if err != nil {
		return models.PendingPaymentOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

// MarkOrderPaid переводит заказ в статус оплаченного.
func (s *Storage) MarkOrderPaid(ctx context.Context, orderID string) error {
	const op = "storage.postgres.MarkOrderPaid"

	res, err := s.DB.ExecContext(ctx,
		`UPDATE pending_orders SET status = $1 WHERE order_id = $2`,
		models.OrderStatusPaid, orderID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}
	return nil
}

// DeleteStaleOrders удаляет неоплаченные заказы, созданные раньше before.
func (s *Storage) DeleteStaleOrders(ctx context.Context, before time.Time) (int, error) {
	const op = "storage.postgres.DeleteStaleOrders"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM pending_orders WHERE status = $1 AND created_at < $2`,
		models.OrderStatusPending, before,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
