package payment

import (
	"bytes"
	"encoding/json"
)

// Типы событий провайдера, которые бот различает.
const (
	EventPaymentCaptured = "payment.captured"
)

// Event тело вебхука провайдера. Разбираются только нужные поля.
type Event struct {
	Event     string   `json:"event"`
	AccountID string   `json:"account_id"`
	Contains  []string `json:"contains"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// PaymentEntity сущность платежа внутри события.
type PaymentEntity struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Notes    Notes  `json:"notes"`
}

// Notes произвольные заметки платежа. Провайдер присылает пустой массив
// вместо пустого объекта, поэтому разбор сделан вручную.
type Notes map[string]string

// UnmarshalJSON принимает объект, пустой массив или null.
func (n *Notes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || (len(data) > 0 && data[0] == '[') {
		*n = Notes{}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Notes, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return err
			}
			out[k] = string(b)
		}
	}
	*n = out
	return nil
}

// Notes-ключи, которые бот записывает при создании ссылки.
const (
	NoteReceipt = "receipt"
	NoteOrderID = "order_id"
)
