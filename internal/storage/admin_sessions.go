package storage

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// UpsertAdminSession сохраняет сессию, заменяя предыдущую сессию пользователя.
func (s *Storage) UpsertAdminSession(ctx context.Context, session models.AdminSession) error {
	const op = "storage.UpsertAdminSession"

	_, err := s.DB.ExecContext(ctx, `INSERT INTO admin_sessions (user_uid, session_id, issued_at, expires_at)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET session_id = EXCLUDED.session_id,
			      issued_at = EXCLUDED.issued_at,
			      expires_at = EXCLUDED.expires_at`,
		session.UserUID, session.ID, session.IssuedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAdminSession возвращает текущую сессию пользователя, ErrNotFound если её нет.
// Срок действия не проверяется, это делает вызывающий.
func (s *Storage) GetAdminSession(ctx context.Context, userUID string) (*models.AdminSession, error) {
	const op = "storage.GetAdminSession"

	var session models.AdminSession
	err := s.DB.QueryRowContext(ctx, `SELECT session_id, user_uid, issued_at, expires_at
			  FROM admin_sessions
			  WHERE user_uid = $1`, userUID).
		Scan(&session.ID, &session.UserUID, &session.IssuedAt, &session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return &session, nil
}
