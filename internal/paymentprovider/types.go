package paymentprovider

// CreatePaymentLinkRequest запрос на создание ссылки на оплату.
type CreatePaymentLinkRequest struct {
	Amount         int64             `json:"amount"`   // сумма в пайсах
	Currency       string            `json:"currency"` // валюта, например "INR"
	Description    string            `json:"description,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"` // наш идентификатор заказа
	ExpireBy       int64             `json:"expire_by,omitempty"`    // unix-время окончания действия ссылки
	ReminderEnable bool              `json:"reminder_enable"`
	Notes          map[string]string `json:"notes,omitempty"` // receipt: tg_<uid>_<plan>
	CallbackURL    string            `json:"callback_url,omitempty"`
	CallbackMethod string            `json:"callback_method,omitempty"`
}

// PaymentLink ответ провайдера со ссылкой на оплату.
type PaymentLink struct {
	ID          string `json:"id"`        // plink_...
	ShortURL    string `json:"short_url"` // страница оплаты
	Status      string `json:"status"`    // created, paid, expired, cancelled
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id"`
	CreatedAt   int64  `json:"created_at"`
}

// APIError тело ошибки провайдера.
type APIError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}
