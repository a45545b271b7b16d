package adminsession

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

const keyPrefix = "admin_session:"

// KV минимальный набор операций кэша, нужный RedisStore.
type KV interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// RedisStore хранит сессии в redis под ключом admin_session:<uid> с TTL,
// равным сроку жизни сессии.
type RedisStore struct {
	kv  KV
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore создаёт хранилище сессий поверх redis.
func NewRedisStore(kv KV, ttl time.Duration, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{kv: kv, ttl: ttl, now: now}
}

// Issue выдаёт новую сессию, перезаписывая ключ.
func (s *RedisStore) Issue(ctx context.Context, userUID string) (models.AdminSession, error) {
	const op = "adminsession.RedisStore.Issue"

	session := newSession(userUID, s.now(), s.ttl)
	if err := s.kv.Set(ctx, keyPrefix+userUID, session, s.ttl); err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// Get возвращает сессию пользователя или nil. Ключ может пережить ExpiresAt
// на величину рассинхронизации часов, поэтому вызывающий всё равно проверяет IsValid.
func (s *RedisStore) Get(ctx context.Context, userUID string) (*models.AdminSession, error) {
	const op = "adminsession.RedisStore.Get"

	var session models.AdminSession
	found, err := s.kv.Get(ctx, keyPrefix+userUID, &session)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}
