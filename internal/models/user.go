// Package models содержит доменные модели системы: учётную запись пользователя,
// снимок состояния подписки, административную сессию и идентичность вызывающего.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID               string             // Уникальный идентификатор пользователя
	Email              string             // Электронная почта
	Username           string             // Имя пользователя (уникальное)
	PasswordHash       string             // Хэш пароля пользователя
	Role               Role               // Роль пользователя, admin или member
	CreatedAt          time.Time          // Дата регистрации, начало пробного периода
	SubscriptionStatus SubscriptionStatus // Статус подписки
	SubscriptionEndsAt *time.Time         // Конец оплаченного периода после отмены
	IsSuspended        bool               // Административная блокировка
	SuspendedReason    *string            // Причина блокировки
}

// Snapshot возвращает срез полей пользователя, влияющих на доступ.
func (u *User) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		UserUID:            u.UUID,
		CreatedAt:          u.CreatedAt,
		SubscriptionStatus: u.SubscriptionStatus,
		SubscriptionEndsAt: u.SubscriptionEndsAt,
		IsSuspended:        u.IsSuspended,
		SuspendedReason:    u.SuspendedReason,
		Role:               u.Role,
	}
}
