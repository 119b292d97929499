// Package memory реализует хранилище состояния пользователей и заказов в памяти процесса.
// Состояние теряется при перезапуске; используется по умолчанию и в тестах.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

// Storage хранит состояние пользователей и заказы в map под мьютексом.
type Storage struct {
	mu     sync.RWMutex
	users  map[int64]models.UserState
	orders map[string]models.PendingPaymentOrder
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		users:  make(map[int64]models.UserState),
		orders: make(map[string]models.PendingPaymentOrder),
	}
}

// Get возвращает состояние пользователя; для неизвестного пользователя:
// состояние по умолчанию.
func (s *Storage) Get(_ context.Context, userID int64) (models.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[userID]
	if !ok {
		return models.UserState{UserID: userID}, nil
	}
	return cloneState(st), nil
}

// Upsert сохраняет состояние пользователя.
func (s *Storage) Upsert(_ context.Context, st models.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[st.UserID] = cloneState(st)
	return nil
}

// SaveOrder сохраняет новый заказ.
func (s *Storage) SaveOrder(_ context.Context, order models.PendingPaymentOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.OrderID]; ok {
		return storage.ErrOrderExists
	}
	s.orders[order.OrderID] = order
	return nil
}

// FindOrder возвращает заказ по идентификатору.
func (s *Storage) FindOrder(_ context.Context, orderID string) (models.PendingPaymentOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.PendingPaymentOrder{}, storage.ErrOrderNotFound
	}
	return order, nil
}

// MarkOrderPaid переводит заказ в статус оплаченного.
func (s *Storage) MarkOrderPaid(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	order.Status = models.OrderStatusPaid
	s.orders[orderID] = order
	return nil
}

// DeleteStaleOrders удаляет неоплаченные заказы, созданные раньше before.
func (s *Storage) DeleteStaleOrders(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, order := range s.orders {
		if order.Status == models.OrderStatusPending && order.CreatedAt.Before(before) {
			delete(s.orders, id)
			n++
		}
	}
	return n, nil
}

func cloneState(st models.UserState) models.UserState {
	if st.Entitlement.Expiry != nil {
		t := *st.Entitlement.Expiry
		st.Entitlement.Expiry = &t
	}
	if st.Moderation.MutedUntil != nil {
		t := *st.Moderation.MutedUntil
		st.Moderation.MutedUntil = &t
	}
	return st
}
