package models

import (
	"fmt"
	"time"
)

// Plan описывает платный тариф. Тариф либо ограничен по времени (Duration),
// либо даёт пакет сообщений (Messages), либо бессрочный, если не задано ни то, ни другое.
type Plan struct {
	Key      string        `yaml:"key" validate:"required"`
	Title    string        `yaml:"title" validate:"required"`
	Amount   int64         `yaml:"amount" validate:"required,gt=0"` // Сумма в минимальных единицах валюты (пайсы)
	Currency string        `yaml:"currency" env-default:"INR"`
	Duration time.Duration `yaml:"duration"`
	Messages int           `yaml:"messages" validate:"gte=0"`
}

// Price возвращает сумму тарифа в человекочитаемом виде, например "₹49".
func (p Plan) Price() string {
	if p.Currency == "" || p.Currency == "INR" {
		if p.Amount%100 == 0 {
			return fmt.Sprintf("₹%d", p.Amount/100)
		}
		return fmt.Sprintf("₹%.2f", float64(p.Amount)/100)
	}
	return fmt.Sprintf("%.2f %s", float64(p.Amount)/100, p.Currency)
}
