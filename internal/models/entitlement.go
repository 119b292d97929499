// Package models содержит доменные структуры бота: состояние пользователя
// (квота бесплатных сообщений, оплаченный доступ, модерация), тарифы,
// заказы на оплату и строки журнала переписки.
package models

import "time"

// Entitlement описывает право пользователя общаться с ботом.
// Пустое значение соответствует бесплатному тарифу без оплаты.
type Entitlement struct {
	FreeMessagesUsed  int        // Сколько бесплатных сообщений уже израсходовано
	Expiry            *time.Time // Окончание оплаченного доступа (nil: нет временного доступа)
	Unlimited         bool       // Бессрочный доступ (выдача без длительности)
	Plan              string     // Тариф, которым выдан текущий доступ
	MessagesRemaining int        // Остаток сообщений пакетного тарифа
}

// Active сообщает, действует ли оплаченный доступ на момент now.
// Пакет сообщений сюда не входит: он расходуется отдельно.
func (e Entitlement) Active(now time.Time) bool {
	if e.Unlimited {
		return true
	}
	return e.Expiry != nil && e.Expiry.After(now)
}

// Moderation описывает состояние модерации пользователя.
type Moderation struct {
	StrikeCount int        // Количество нарушений
	MutedUntil  *time.Time // До какого момента пользователь заглушён
}

// Muted сообщает, заглушён ли пользователь на момент now.
func (m Moderation) Muted(now time.Time) bool {
	return m.MutedUntil != nil && m.MutedUntil.After(now)
}

// UserState объединяет всё, что бот хранит о пользователе.
// Запись создаётся лениво при первом сообщении и никогда не удаляется.
type UserState struct {
	UserID        int64
	Entitlement   Entitlement
	Moderation    Moderation
	MessagesTotal int // Сколько сообщений пропущено к генератору за всё время
	UpdatedAt     time.Time
}
