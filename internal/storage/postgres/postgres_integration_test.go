package postgres

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/riya-bot/internal/migrations"
	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/services/gate"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("riya"),
		tcpostgres.WithUsername("riya"),
		tcpostgres.WithPassword("riya"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db, path))

	s := NewWithDB(db)
	require.NoError(t, s.CheckDatabaseReady(ctx))
	return s
}

func TestStorage_Integration(t *testing.T) {
	s := setupTestDatabase(t)
	ctx := context.Background()

	t.Run("state round trip", func(t *testing.T) {
		expiry := time.Date(2026, 10, 15, 12, 20, 0, 0, time.UTC)
		in := models.UserState{
			UserID:        1001,
			Entitlement:   models.Entitlement{FreeMessagesUsed: 5, Expiry: &expiry, Plan: "plan_49"},
			Moderation:    models.Moderation{StrikeCount: 2},
			MessagesTotal: 9,
			UpdatedAt:     expiry,
		}
		require.NoError(t, s.Upsert(ctx, in))

		got, err := s.Get(ctx, 1001)
		require.NoError(t, err)
		require.NotNil(t, got.Entitlement.Expiry)
		assert.True(t, expiry.Equal(*got.Entitlement.Expiry))
		assert.Nil(t, got.Moderation.MutedUntil)
		assert.Equal(t, 5, got.Entitlement.FreeMessagesUsed)
		assert.Equal(t, 2, got.Moderation.StrikeCount)

		in.Entitlement.Expiry = nil
		in.Entitlement.Unlimited = true
		require.NoError(t, s.Upsert(ctx, in))
		got, err = s.Get(ctx, 1001)
		require.NoError(t, err)
		assert.Nil(t, got.Entitlement.Expiry)
		assert.True(t, got.Entitlement.Unlimited)
	})

	t.Run("orders lifecycle", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		old := models.PendingPaymentOrder{OrderID: "order-old", UserID: 1, Amount: 4900, Plan: "plan_49",
			Reference: "tg_1_plan_49", Status: models.OrderStatusPending, CreatedAt: now.Add(-72 * time.Hour)}
		fresh := old
		fresh.OrderID, fresh.CreatedAt = "order-new", now

		require.NoError(t, s.SaveOrder(ctx, old))
		require.NoError(t, s.SaveOrder(ctx, fresh))
		assert.ErrorIs(t, s.SaveOrder(ctx, fresh), storage.ErrOrderExists)

		require.NoError(t, s.MarkOrderPaid(ctx, "order-new"))
		got, err := s.FindOrder(ctx, "order-new")
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPaid, got.Status)

		n, err := s.DeleteStaleOrders(ctx, now.Add(-48*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		_, err = s.FindOrder(ctx, "order-old")
		assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	})

	t.Run("gate over postgres allows exactly the free limit", func(t *testing.T) {
		g := gate.New(s, newNoopLogger(), gate.Options{FreeLimit: 5})
		const uid = int64(2002)

		var wg sync.WaitGroup
		var mu sync.Mutex
		allowed := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := g.CheckAndConsume(ctx, uid)
				if err == nil && d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 5, allowed)

		st, err := s.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, 5, st.Entitlement.FreeMessagesUsed)
	})
}
