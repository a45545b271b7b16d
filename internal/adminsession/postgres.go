package adminsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// Repository методы хранилища для таблицы admin_sessions.
type Repository interface {
	UpsertAdminSession(ctx context.Context, session models.AdminSession) error
	GetAdminSession(ctx context.Context, userUID string) (*models.AdminSession, error)
}

// PostgresStore хранит сессии в PostgreSQL. Истёкшие строки не удаляются,
// их отсекает IsValid при чтении.
type PostgresStore struct {
	repo Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgresStore создаёт хранилище сессий поверх repo.
func NewPostgresStore(repo Repository, ttl time.Duration, now func() time.Time) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{repo: repo, ttl: ttl, now: now}
}

// Issue выдаёт новую сессию и заменяет ею предыдущую.
func (s *PostgresStore) Issue(ctx context.Context, userUID string) (models.AdminSession, error) {
	const op = "adminsession.PostgresStore.Issue"

	session := newSession(userUID, s.now(), s.ttl)
	if err := s.repo.UpsertAdminSession(ctx, session); err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// Get возвращает сессию пользователя или nil.
func (s *PostgresStore) Get(ctx context.Context, userUID string) (*models.AdminSession, error) {
	const op = "adminsession.PostgresStore.Get"

	session, err := s.repo.GetAdminSession(ctx, userUID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}
