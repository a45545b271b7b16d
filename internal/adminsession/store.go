// Package adminsession хранит короткоживущие административные сессии,
// которые выдаются явной разблокировкой и требуются админским процедурам
// в дополнение к роли admin.
//
// Срок действия абсолютный: чтение сессии его не продлевает, отдельного
// отзыва нет, сессия перестаёт действовать только по истечении.
package adminsession

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// Store выдаёт и читает административные сессии. У пользователя не больше одной
// активной сессии: Issue перезаписывает предыдущую.
type Store interface {
	// Issue создаёт новую сессию. Вызывающий обязан заранее убедиться, что роль admin.
	Issue(ctx context.Context, userUID string) (models.AdminSession, error)
	// Get возвращает текущую сессию или nil, если её нет.
	Get(ctx context.Context, userUID string) (*models.AdminSession, error)
}

// IsValid сообщает, действует ли сессия в момент now.
func IsValid(session *models.AdminSession, now time.Time) bool {
	return session != nil && session.ExpiresAt.After(now)
}

func newSession(userUID string, now time.Time, ttl time.Duration) models.AdminSession {
	return models.AdminSession{
		ID:        uuid.NewString(),
		UserUID:   userUID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}
