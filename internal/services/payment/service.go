// Package payment связывает платёжного провайдера со шлюзом доступа:
// выпуск ссылок на оплату, обработка подтверждённых событий оплаты и
// ручная выдача доступа администратором.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/metrics"
	"github.com/magabrotheeeer/riya-bot/internal/models"
	"github.com/magabrotheeeer/riya-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/riya-bot/internal/storage"
)

// Outcome итог обработки события.
type Outcome string

// Итоги обработки события.
const (
	OutcomeUnlocked  Outcome = "unlocked"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "ok"
)

// DedupeTTL сколько помнить идентификатор доставленного события.
const DedupeTTL = 24 * time.Hour

// Granter выдаёт доступ пользователю.
type Granter interface {
	GrantEntitlement(ctx context.Context, userID int64, plan models.Plan) error
}

// OrderStore хранилище заказов на оплату.
type OrderStore interface {
	SaveOrder(ctx context.Context, order models.PendingPaymentOrder) error
	FindOrder(ctx context.Context, orderID string) (models.PendingPaymentOrder, error)
	MarkOrderPaid(ctx context.Context, orderID string) error
}

// ProviderClient определяет интерфейс для работы с платежным провайдером.
type ProviderClient interface {
	CreatePaymentLink(ctx context.Context, req paymentprovider.CreatePaymentLinkRequest) (*paymentprovider.PaymentLink, error)
}

// Deduper запоминает уже обработанные события.
type Deduper interface {
	// MarkOnce возвращает true, если ключ встретился впервые.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Notifier отправляет пользователю служебное сообщение.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// TokenMaker выпускает токены ссылок на оплату.
type TokenMaker interface {
	GenerateToken(userID int64, plan string) (string, error)
}

// Options параметры сервиса.
type Options struct {
	PublicURL     string        // Внешний адрес HTTP-сервера бота
	LinkTTL       time.Duration // Время жизни ссылки у провайдера
	NotifyTimeout time.Duration
	UnlockText    string
}

// Service сервис платежей.
type Service struct {
	log      *slog.Logger
	catalog  *Catalog
	granter  Granter
	orders   OrderStore
	provider ProviderClient
	dedupe   Deduper
	notifier Notifier
	tokens   TokenMaker
	opts     Options
	now      func() time.Time
}

// New создаёт сервис платежей. notifier и dedupe могут быть nil.
func New(
	log *slog.Logger,
	catalog *Catalog,
	granter Granter,
	orders OrderStore,
	provider ProviderClient,
	tokens TokenMaker,
	dedupe Deduper,
	notifier Notifier,
	opts Options,
) *Service {
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.UnlockText == "" {
		opts.UnlockText = "Payment received 💖 You're unlocked, come talk to me 😘"
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &Service{
		log:      log,
		catalog:  catalog,
		granter:  granter,
		orders:   orders,
		provider: provider,
		dedupe:   dedupe,
		notifier: notifier,
		tokens:   tokens,
		opts:     opts,
		now:      time.Now,
	}
}

// Plans возвращает каталог тарифов.
func (s *Service) Plans() []models.Plan {
	return s.catalog.All()
}

// HandleEvent обрабатывает проверенное событие провайдера. Если eventID пуст,
// повторные доставки распознаются по id платежа. Ошибка означает сбой
// хранилища: провайдер должен повторить доставку.
func (s *Service) HandleEvent(ctx context.Context, eventID string, ev *Event) (Outcome, error) {
	const op = "payment.HandleEvent"
	log := s.log.With(slog.String("op", op), slog.String("event", ev.Event), slog.String("event_id", eventID))

	if ev.Event != EventPaymentCaptured {
		log.Info("ignored webhook event")
		return OutcomeIgnored, nil
	}

	entity := ev.Payload.Payment.Entity
	userID, planKey, err := ParseCorrelation(entity.Notes[NoteReceipt])
	if err != nil {
		log.Warn("unrecognized payment correlation",
			slog.String("payment_id", entity.ID),
			slog.String("receipt", entity.Notes[NoteReceipt]),
			sl.Err(err),
		)
		return OutcomeIgnored, nil
	}
	plan, err := s.catalog.Get(planKey)
	if err != nil {
		log.Warn("payment for unknown plan", sl.UserID(userID), sl.Err(err))
		return OutcomeIgnored, nil
	}

	dedupeKey := "webhook:" + eventID
	if eventID == "" {
		dedupeKey = "payment:" + entity.ID
	}
	useDedupe := s.dedupe != nil && (eventID != "" || entity.ID != "")
	if useDedupe {
		first, err := s.dedupe.MarkOnce(ctx, dedupeKey, DedupeTTL)
		if err != nil {
			log.Error("dedupe check failed, processing anyway", sl.Err(err))
		} else if !first {
			log.Info("duplicate webhook delivery")
			return OutcomeDuplicate, nil
		}
	}

	if err := s.granter.GrantEntitlement(ctx, userID, plan); err != nil {
		if useDedupe {
			if ferr := s.dedupe.Forget(ctx, dedupeKey); ferr != nil {
				log.Error("failed to forget event id", sl.Err(ferr))
			}
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	metrics.Grants.WithLabelValues("webhook", plan.Key).Inc()
	log.Info("payment captured, user unlocked",
		sl.UserID(userID),
		slog.String("plan", plan.Key),
		slog.String("payment_id", entity.ID),
	)

	s.settleOrder(ctx, log, entity, plan)
	s.notify(ctx, userID, s.opts.UnlockText)
	return OutcomeUnlocked, nil
}

func (s *Service) settleOrder(ctx context.Context, log *slog.Logger, entity PaymentEntity, plan models.Plan) {
	orderID := entity.Notes[NoteOrderID]
	if orderID == "" || s.orders == nil {
		return
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			log.Debug("no pending order for payment", slog.String("order_id", orderID))
			return
		}
		log.Error("failed to find order", slog.String("order_id", orderID), sl.Err(err))
		return
	}
	if order.Amount != entity.Amount || order.Plan != plan.Key {
		log.Warn("payment does not match order",
			slog.String("order_id", orderID),
			slog.Int64("order_amount", order.Amount),
			slog.Int64("paid_amount", entity.Amount),
			slog.String("order_plan", order.Plan),
		)
	}
	if err := s.orders.MarkOrderPaid(ctx, orderID); err != nil {
		log.Error("failed to mark order paid", slog.String("order_id", orderID), sl.Err(err))
	}
}

// notify отправляет уведомление в фоне; ошибка только логируется.
func (s *Service) notify(ctx context.Context, userID int64, text string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	go func() {
		defer cancel()
		if err := s.notifier.Notify(ctx, userID, text); err != nil {
			s.log.Warn("failed to notify user", slog.String("op", "payment.notify"), sl.UserID(userID), sl.Err(err))
		}
	}()
}

// AdminGrant выдаёт доступ вручную; эффект такой же, как у подтверждённой оплаты.
func (s *Service) AdminGrant(ctx context.Context, userID int64, planKey string) (models.Plan, error) {
	const op = "payment.AdminGrant"
	plan, err := s.catalog.Get(planKey)
	if err != nil {
		return models.Plan{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.granter.GrantEntitlement(ctx, userID, plan); err != nil {
		return models.Plan{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.Grants.WithLabelValues("admin", plan.Key).Inc()
	s.notify(ctx, userID, s.opts.UnlockText)
	return plan, nil
}

// PayURL строит ссылку на наш обработчик оплаты для кнопки пейвола.
func (s *Service) PayURL(userID int64, planKey string) (string, error) {
	const op = "payment.PayURL"
	plan, err := s.catalog.Get(planKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.tokens.GenerateToken(userID, plan.Key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return s.opts.PublicURL + "/api/v1/pay/" + token, nil
}

// CreatePaymentLink создаёт у провайдера ссылку на оплату тарифа и сохраняет заказ.
func (s *Service) CreatePaymentLink(ctx context.Context, userID int64, planKey string) (string, error) {
	const op = "payment.CreatePaymentLink"

	plan, err := s.catalog.Get(planKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	orderID := uuid.NewString()
	ref := FormatCorrelation(userID, plan.Key)
	req := paymentprovider.CreatePaymentLinkRequest{
		Amount:      plan.Amount,
		Currency:    plan.Currency,
		Description: plan.Title,
		ReferenceID: orderID,
		Notes: map[string]string{
			NoteReceipt: ref,
			NoteOrderID: orderID,
			"user_id":   strconv.FormatInt(userID, 10),
		},
	}
	if s.opts.LinkTTL > 0 {
		req.ExpireBy = now.Add(s.opts.LinkTTL).Unix()
	}

	link, err := s.provider.CreatePaymentLink(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	order := models.PendingPaymentOrder{
		OrderID:   orderID,
		LinkID:    link.ID,
		UserID:    userID,
		Amount:    plan.Amount,
		Plan:      plan.Key,
		Reference: ref,
		Status:    models.OrderStatusPending,
		CreatedAt: now,
	}
	if err := s.orders.SaveOrder(ctx, order); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment link created",
		slog.String("op", op),
		sl.UserID(userID),
		slog.String("plan", plan.Key),
		slog.String("order_id", orderID),
	)
	return link.ShortURL, nil
}
