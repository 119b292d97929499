package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// correlationPrefix префикс строки корреляции в notes.receipt.
const correlationPrefix = "tg_"

// ErrBadCorrelation строка корреляции отсутствует или не соответствует формату tg_<uid>[_<plan>].
var ErrBadCorrelation = errors.New("unrecognized correlation reference")

// FormatCorrelation строит строку корреляции для пользователя и тарифа.
func FormatCorrelation(userID int64, plan string) string {
	ref := correlationPrefix + strconv.FormatInt(userID, 10)
	if plan != "" {
		ref += "_" + plan
	}
	return ref
}

// ParseCorrelation разбирает строку вида tg_<uid>[_<plan>]. Ключ тарифа
// может сам содержать подчёркивания; пустой ключ означает тариф по умолчанию.
func ParseCorrelation(ref string) (int64, string, error) {
	const op = "payment.ParseCorrelation"

	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), correlationPrefix)
	if !ok {
		return 0, "", fmt.Errorf("%s: %w: missing prefix", op, ErrBadCorrelation)
	}
	uidPart, plan, _ := strings.Cut(rest, "_")
	for _, r := range uidPart {
		if r < '0' || r > '9' {
			return 0, "", fmt.Errorf("%s: %w: non-numeric user id", op, ErrBadCorrelation)
		}
	}
	uid, err := strconv.ParseInt(uidPart, 10, 64)
	if err != nil || uid <= 0 {
		return 0, "", fmt.Errorf("%s: %w: bad user id", op, ErrBadCorrelation)
	}
	return uid, plan, nil
}
