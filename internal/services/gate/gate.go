// Package gate реализует шлюз доступа: учёт бесплатных сообщений, оплаченного
// доступа и лестницы нарушений модерации. Решение принимается до обращения
// к генератору ответов; все изменения состояния пользователя выполняются
// под персональной блокировкой пользователя.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/riya-bot/internal/lib/sl"
	"github.com/magabrotheeeer/riya-bot/internal/metrics"
	"github.com/magabrotheeeer/riya-bot/internal/models"
)

// Store определяет методы хранилища состояния пользователей.
type Store interface {
	// Get возвращает состояние пользователя или состояние по умолчанию для нового.
	Get(ctx context.Context, userID int64) (models.UserState, error)
	// Upsert сохраняет состояние пользователя.
	Upsert(ctx context.Context, st models.UserState) error
}

// BlockReason причина отказа.
type BlockReason string

// Причины отказа.
const (
	ReasonNone            BlockReason = ""
	ReasonMuted           BlockReason = "muted"
	ReasonPaywallRequired BlockReason = "paywall_required"
)

// Source откуда взят доступ при разрешении.
type Source string

// Источники доступа.
const (
	SourcePaid    Source = "paid"
	SourceCredits Source = "credits"
	SourceFree    Source = "free"
)

// Decision результат проверки CheckAndConsume.
type Decision struct {
	Allowed       bool
	Reason        BlockReason
	Source        Source
	FreeRemaining int        // Остаток бесплатных сообщений после решения
	MessageCount  int        // Номер сообщения пользователя, пропущенного к генератору
	MutedUntil    *time.Time // Заполняется при ReasonMuted
}

// StrikeLevel результат RecordStrike.
type StrikeLevel struct {
	Count      int
	Muted      bool
	MutedUntil *time.Time
}

// Options параметры шлюза.
type Options struct {
	FreeLimit             int
	StrikeThreshold       int
	MuteDuration          time.Duration
	ResetStrikesAfterMute bool
	Now                   func() time.Time
}

// Gate шлюз доступа. Единственный владелец состояния пользователей.
type Gate struct {
	store Store
	log   *slog.Logger
	opts  Options
	locks *keyedMutex
}

// New создает новый экземпляр Gate.
func New(store Store, log *slog.Logger, opts Options) *Gate {
	if opts.StrikeThreshold <= 0 {
		opts.StrikeThreshold = 3
	}
	if opts.MuteDuration <= 0 {
		opts.MuteDuration = 12 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		store: store,
		log:   log,
		opts:  opts,
		locks: newKeyedMutex(),
	}
}

// FreeLimit возвращает размер бесплатной квоты.
func (g *Gate) FreeLimit() int {
	return g.opts.FreeLimit
}

// CheckAndConsume решает, можно ли передать сообщение пользователя генератору.
// Бесплатное сообщение списывается сразу при разрешении и не возвращается,
// даже если генерация ответа потом завершится ошибкой.
func (g *Gate) CheckAndConsume(ctx context.Context, userID int64) (Decision, error) {
	const op = "gate.CheckAndConsume"

	unlock := g.locks.Lock(userID)
	defer unlock()

	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	now := g.opts.Now()

	if st.Moderation.Muted(now) {
		metrics.GateDecisions.WithLabelValues("block", string(ReasonMuted)).Inc()
		return Decision{Reason: ReasonMuted, MutedUntil: st.Moderation.MutedUntil, FreeRemaining: g.freeRemaining(st)}, nil
	}

	ent := &st.Entitlement
	var src Source
	switch {
	case ent.Active(now):
		src = SourcePaid
	case ent.MessagesRemaining > 0:
		ent.MessagesRemaining--
		src = SourceCredits
	case ent.FreeMessagesUsed < g.opts.FreeLimit:
		ent.FreeMessagesUsed++
		src = SourceFree
	default:
		metrics.GateDecisions.WithLabelValues("block", string(ReasonPaywallRequired)).Inc()
		return Decision{Reason: ReasonPaywallRequired}, nil
	}

	st.MessagesTotal++
	st.UpdatedAt = now
	if err := g.store.Upsert(ctx, st); err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.GateDecisions.WithLabelValues("allow", string(src)).Inc()
	return Decision{
		Allowed:       true,
		Source:        src,
		FreeRemaining: g.freeRemaining(st),
		MessageCount:  st.MessagesTotal,
	}, nil
}

// GrantEntitlement выдаёт пользователю доступ по тарифу. Повторная выдача
// перезаписывает предыдущую, а не суммируется:
//   - тариф с длительностью: доступ до now + Duration;
//   - пакетный тариф: остаток сообщений становится равным Messages;
//   - тариф без длительности и пакета: бессрочный доступ.
func (g *Gate) GrantEntitlement(ctx context.Context, userID int64, plan models.Plan) error {
	const op = "gate.GrantEntitlement"

	unlock := g.locks.Lock(userID)
	defer unlock()

	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	now := g.opts.Now()

	ent := &st.Entitlement
	ent.Plan = plan.Key
	ent.Expiry = nil
	ent.Unlimited = false
	ent.MessagesRemaining = 0
	switch {
	case plan.Duration > 0:
		expiry := now.Add(plan.Duration)
		ent.Expiry = &expiry
	case plan.Messages > 0:
		ent.MessagesRemaining = plan.Messages
	default:
		ent.Unlimited = true
	}
	st.UpdatedAt = now

	if err := g.store.Upsert(ctx, st); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	g.log.Info("entitlement granted",
		slog.String("op", op),
		sl.UserID(userID),
		slog.String("plan", plan.Key),
	)
	return nil
}

// RecordStrike фиксирует нарушение модерации. По достижении порога
// пользователь заглушается на MuteDuration; нарушение во время действующего
// мьюта мьют не продлевает.
func (g *Gate) RecordStrike(ctx context.Context, userID int64) (StrikeLevel, error) {
	const op = "gate.RecordStrike"

	unlock := g.locks.Lock(userID)
	defer unlock()

	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return StrikeLevel{}, fmt.Errorf("%s: %w", op, err)
	}
	now := g.opts.Now()

	m := &st.Moderation
	if g.opts.ResetStrikesAfterMute && m.MutedUntil != nil && !m.Muted(now) {
		m.StrikeCount = 0
		m.MutedUntil = nil
	}
	m.StrikeCount++
	if m.StrikeCount >= g.opts.StrikeThreshold && !m.Muted(now) {
		until := now.Add(g.opts.MuteDuration)
		m.MutedUntil = &until
		g.log.Info("user muted",
			slog.String("op", op),
			sl.UserID(userID),
			slog.Time("until", until),
		)
	}
	st.UpdatedAt = now

	if err := g.store.Upsert(ctx, st); err != nil {
		return StrikeLevel{}, fmt.Errorf("%s: %w", op, err)
	}

	level := StrikeLevel{
		Count:      m.StrikeCount,
		Muted:      m.Muted(now),
		MutedUntil: m.MutedUntil,
	}
	metrics.Strikes.WithLabelValues(fmt.Sprint(level.Muted)).Inc()
	return level, nil
}

// IsMuted сообщает, заглушён ли пользователь сейчас. Состояние не меняет.
func (g *Gate) IsMuted(ctx context.Context, userID int64) (bool, error) {
	const op = "gate.IsMuted"
	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return st.Moderation.Muted(g.opts.Now()), nil
}

// ResetModeration снимает мьют и обнуляет счётчик нарушений.
func (g *Gate) ResetModeration(ctx context.Context, userID int64) error {
	const op = "gate.ResetModeration"

	unlock := g.locks.Lock(userID)
	defer unlock()

	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	st.Moderation = models.Moderation{}
	st.UpdatedAt = g.opts.Now()
	if err := g.store.Upsert(ctx, st); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Status возвращает текущее состояние пользователя для команды /status.
func (g *Gate) Status(ctx context.Context, userID int64) (models.UserState, error) {
	const op = "gate.Status"
	st, err := g.store.Get(ctx, userID)
	if err != nil {
		return models.UserState{}, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// Now возвращает текущее время часов шлюза.
func (g *Gate) Now() time.Time {
	return g.opts.Now()
}

func (g *Gate) freeRemaining(st models.UserState) int {
	if r := g.opts.FreeLimit - st.Entitlement.FreeMessagesUsed; r > 0 {
		return r
	}
	return 0
}
