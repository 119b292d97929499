// Package storage содержит общие для всех хранилищ ошибки.
package storage

import "errors"

var (
	// ErrOrderNotFound возвращается, если заказ на оплату не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторном сохранении заказа с тем же идентификатором.
	ErrOrderExists = errors.New("order already exists")
)
