// Package admin административные операции: разблокировка админской сессии,
// просмотр аккаунтов и блокировка аккаунтов.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/stable-manager/internal/adminsession"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/models"
)

var (
	// ErrNotAdmin у аккаунта нет роли admin.
	ErrNotAdmin = errors.New("admin role required")
	// ErrSelfSuspend администратор пытается заблокировать сам себя.
	ErrSelfSuspend = errors.New("cannot suspend own account")
)

// UserRepository методы хранилища пользователей для администрирования.
type UserRepository interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SetSuspended(ctx context.Context, userUID string, suspended bool, reason *string) error
}

// PasswordVerifier повторная проверка пароля при разблокировке.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userUID, password string) error
}

// Account строка списка аккаунтов.
type Account struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	models.AccountSnapshot
}

// Service административные операции.
type Service struct {
	users     UserRepository
	sessions  adminsession.Store
	passwords PasswordVerifier
	log       *slog.Logger
}

// New создаёт сервис администрирования.
func New(users UserRepository, sessions adminsession.Store, passwords PasswordVerifier, log *slog.Logger) *Service {
	return &Service{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		log:       log,
	}
}

// Unlock выдаёт админскую сессию после повторной проверки пароля.
// Роль берётся из снимка аккаунта, а не из токена.
func (s *Service) Unlock(ctx context.Context, snapshot *models.AccountSnapshot, password string) (models.AdminSession, error) {
	const op = "admin.Unlock"

	if snapshot == nil || !snapshot.IsAdmin() {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, ErrNotAdmin)
	}
	if err := s.passwords.VerifyPassword(ctx, snapshot.UserUID, password); err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.sessions.Issue(ctx, snapshot.UserUID)
	if err != nil {
		return models.AdminSession{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin session issued", sl.Op(op),
		slog.String("user_uid", snapshot.UserUID),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

// ListAccounts возвращает страницу аккаунтов.
func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]Account, error) {
	const op = "admin.ListAccounts"

	users, err := s.users.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	accounts := make([]Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, Account{
			Username:        u.Username,
			Email:           u.Email,
			AccountSnapshot: u.Snapshot(),
		})
	}
	return accounts, nil
}

// SuspendAccount блокирует аккаунт. Блокировка действует со следующего запроса.
func (s *Service) SuspendAccount(ctx context.Context, actorUID, userUID, reason string) error {
	const op = "admin.SuspendAccount"

	if actorUID == userUID {
		return fmt.Errorf("%s: %w", op, ErrSelfSuspend)
	}
	var r *string
	if reason = strings.TrimSpace(reason); reason != "" {
		r = &reason
	}
	if err := s.users.SetSuspended(ctx, userUID, true, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account suspended", sl.Op(op),
		slog.String("actor_uid", actorUID),
		slog.String("user_uid", userUID),
	)
	return nil
}

// UnsuspendAccount снимает блокировку и её причину.
func (s *Service) UnsuspendAccount(ctx context.Context, actorUID, userUID string) error {
	const op = "admin.UnsuspendAccount"

	if err := s.users.SetSuspended(ctx, userUID, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account unsuspended", sl.Op(op),
		slog.String("actor_uid", actorUID),
		slog.String("user_uid", userUID),
	)
	return nil
}
