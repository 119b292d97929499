package jwt

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "riya-bot"

// PayLinkClaims данные, хранящиеся в токене ссылки на оплату.
type PayLinkClaims struct {
	UserID               int64  `json:"uid" validate:"required,gt=0"` // Пользователь Telegram
	Plan                 string `json:"plan" validate:"required"`     // Ключ тарифа
	jwt.RegisteredClaims        // ExpiresAt, IssuedAt, Issuer
}

// GenerateToken создаёт токен для пары пользователь/тариф.
func (j *MakerImpl) GenerateToken(userID int64, plan string) (string, error) {
	now := j.now()
	claims := PayLinkClaims{
		UserID: userID,
		Plan:   plan,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken проверяет подпись, срок действия и издателя токена.
// Любая ошибка оборачивает ErrInvalidToken.
func (j *MakerImpl) ParseToken(tokenStr string) (*PayLinkClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &PayLinkClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*PayLinkClaims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.Plan == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	return claims, nil
}
