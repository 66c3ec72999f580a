// Package service реализует бизнес-логику жизненного цикла заказов магазина.
package service

import "errors"

// ErrConflict возвращается, когда охранное условие перехода не выполнено:
// неверный исходный статус, отсутствующая зависимая запись, повторное
// терминальное действие. Повтор без исправления состояния бессмыслен.
var (
	ErrConflict = errors.New("conflict")
	// ErrBadRequest возвращается на запрос неподдерживаемого перехода
	// или некорректные входные данные.
	ErrBadRequest = errors.New("bad request")
)
