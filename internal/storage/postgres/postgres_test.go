package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

func newMockStorage(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

var stateColumns = []string{
	"free_messages_used", "expiry", "unlimited", "plan", "messages_remaining",
	"strike_count", "muted_until", "messages_total", "updated_at",
}

func TestStorage_Get(t *testing.T) {
	expiry := time.Date(2026, 10, 15, 12, 20, 0, 0, time.UTC)
	updated := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		setup   func(sqlmock.Sqlmock)
		want    models.UserState
		wantErr bool
	}{
		{
			name: "existing user",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM user_entitlements")).
					WithArgs(int64(1001)).
					WillReturnRows(sqlmock.NewRows(stateColumns).
						AddRow(5, expiry, false, "plan_49", 0, 1, nil, 12, updated))
			},
			want: models.UserState{
				UserID:        1001,
				Entitlement:   models.Entitlement{FreeMessagesUsed: 5, Expiry: &expiry, Plan: "plan_49"},
				Moderation:    models.Moderation{StrikeCount: 1},
				MessagesTotal: 12,
				UpdatedAt:     updated,
			},
		},
		{
			name: "unknown user gets default state",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM user_entitlements")).
					WithArgs(int64(1001)).
					WillReturnError(sql.ErrNoRows)
			},
			want: models.UserState{UserID: 1001},
		},
		{
			name: "database error",
			setup: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta("FROM user_entitlements")).
					WithArgs(int64(1001)).
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newMockStorage(t)
			tt.setup(m)

			got, err := s.Get(context.Background(), 1001)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "storage.postgres.Get")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestStorage_Upsert(t *testing.T) {
	s, m := newMockStorage(t)
	muted := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	st := models.UserState{
		UserID:      1001,
		Entitlement: models.Entitlement{FreeMessagesUsed: 3, Unlimited: true, Plan: "lifetime"},
		Moderation:  models.Moderation{StrikeCount: 3, MutedUntil: &muted},
		UpdatedAt:   muted,
	}

	m.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) DO UPDATE")).
		WithArgs(int64(1001), 3, sql.NullTime{}, true, "lifetime", 0, 3,
			sql.NullTime{Time: muted, Valid: true}, 0, muted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Upsert(context.Background(), st))
	require.NoError(t, m.ExpectationsWereMet())
}

func TestStorage_SaveOrder(t *testing.T) {
	order := models.PendingPaymentOrder{
		OrderID:   "0b6f3c1e-7f7a-4b36-9d1e-3f9b8f1a2c4d",
		LinkID:    "plink_Abc",
		UserID:    1001,
		Amount:    4900,
		Plan:      "plan_49",
		Reference: "tg_1001_plan_49",
		Status:    models.OrderStatusPending,
		CreatedAt: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		execErr error
		wantIs  error
	}{
		{name: "saved"},
		{name: "duplicate", execErr: &pgconn.PgError{Code: uniqueViolation}, wantIs: storage.ErrOrderExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newMockStorage(t)
			exp := m.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_orders")).
				WithArgs(order.OrderID, order.LinkID, order.UserID, order.Amount, order.Plan,
					order.Reference, order.Status, order.CreatedAt)
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := s.SaveOrder(context.Background(), order)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestStorage_FindOrderNotFound(t *testing.T) {
	s, m := newMockStorage(t)
	m.ExpectQuery(regexp.QuoteMeta("FROM pending_orders")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	require.NoError(t, m.ExpectationsWereMet())
}

func TestStorage_MarkOrderPaid(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantIs   error
	}{
		{name: "marked", affected: 1},
		{name: "missing order", affected: 0, wantIs: storage.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newMockStorage(t)
			m.ExpectExec(regexp.QuoteMeta("UPDATE pending_orders SET status")).
				WithArgs(models.OrderStatusPaid, "order-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := s.MarkOrderPaid(context.Background(), "order-1")
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, m.ExpectationsWereMet())
		})
	}
}

func TestStorage_DeleteStaleOrders(t *testing.T) {
	s, m := newMockStorage(t)
	before := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	m.ExpectExec(regexp.QuoteMeta("DELETE FROM pending_orders")).
		WithArgs(models.OrderStatusPending, before).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.DeleteStaleOrders(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, m.ExpectationsWereMet())
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
