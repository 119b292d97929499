package models

import "time"

// Статусы заказа на оплату.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
)

// PendingPaymentOrder: заказ, созданный у платёжного провайдера до перехода
// пользователя на страницу оплаты. Событие об оплате сопоставляется
// с заказом по OrderID, который передаётся провайдеру как reference_id и notes.order_id.
type PendingPaymentOrder struct {
	OrderID   string    `json:"order_id"`  // Наш идентификатор заказа (uuid)
	LinkID    string    `json:"link_id"`   // Идентификатор ссылки на оплату у провайдера
	UserID    int64     `json:"user_id"`   // Пользователь Telegram
	Amount    int64     `json:"amount"`    // Сумма в пайсах
	Plan      string    `json:"plan"`      // Ключ тарифа
	Reference string    `json:"reference"` // Корреляционная строка tg_<uid>_<plan>
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
