// Package jwt выпускает и проверяет подписанные токены ссылок на оплату.
//
// Токен несёт идентификатор пользователя Telegram и ключ тарифа, поэтому
// ссылка из кнопки пейвола не может быть подделана для чужого пользователя.
package jwt

import (
	"errors"
	"time"
)

// ErrInvalidToken возвращается для любого непригодного токена.
var ErrInvalidToken = errors.New("invalid pay link token")

// Maker описывает интерфейс для генерации и парсинга токенов ссылок на оплату.
type Maker interface {
	GenerateToken(userID int64, plan string) (string, error)
	ParseToken(tokenStr string) (*PayLinkClaims, error)
}

// MakerImpl реализует Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
	now       func() time.Time
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		now:       time.Now,
	}
}
