// Package scheduler периодически удаляет заказы на оплату, которые так и не были оплачены.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
)

const defaultInterval = time.Hour

// OrderRepository хранилище заказов.
type OrderRepository interface {
	DeleteStaleOrders(ctx context.Context, before time.Time) (int, error)
}

// SweeperService удаляет устаревшие неоплаченные заказы.
type SweeperService struct {
	repo     OrderRepository
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeperService создаёт сервис. Заказ считается устаревшим, если он
// старше ttl; проверка выполняется раз в interval.
func NewSweeperService(repo OrderRepository, log *slog.Logger, ttl, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &SweeperService{
		repo:     repo,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run выполняет очистку сразу и затем по таймеру до отмены ctx.
func (s *SweeperService) Run(ctx context.Context) {
	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("order sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce удаляет заказы старше ttl и возвращает их количество.
func (s *SweeperService) SweepOnce(ctx context.Context) int {
	const op = "scheduler.SweepOnce"
	log := s.log.With(slog.String("op", op))

	n, err := s.repo.DeleteStaleOrders(ctx, s.now().Add(-s.ttl))
	if err != nil {
		log.Error("failed to delete stale orders", sl.Err(err))
		return 0
	}
	if n > 0 {
		log.Info("deleted stale orders", slog.Int("count", n))
	}
	return n
}
