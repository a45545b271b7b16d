package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

const userColumns = `uid, email, username, password_hash, role, created_at,
	subscription_status, subscription_ends_at, is_suspended, suspended_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u               models.User
		role, status    string
		endsAt          sql.NullTime
		suspendedReason sql.NullString
	)
	if err := row.Scan(&u.UUID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.CreatedAt,
		&status, &endsAt, &u.IsSuspended, &suspendedReason); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.SubscriptionStatus = models.SubscriptionStatus(status)
	if endsAt.Valid {
		t := endsAt.Time
		u.SubscriptionEndsAt = &t
	}
	if suspendedReason.Valid {
		r := suspendedReason.String
		u.SuspendedReason = &r
	}
	return &u, nil
}

// RegisterUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (email, username, password_hash, role, created_at, subscription_status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.Username, user.PasswordHash, string(user.Role), user.CreatedAt,
		string(user.SubscriptionStatus)).Scan(&newID); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"

	row := s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, userUID)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// GetAccountSnapshot читает поля аккаунта, влияющие на доступ. Только чтение, без политики.
func (s *Storage) GetAccountSnapshot(ctx context.Context, userUID string) (*models.AccountSnapshot, error) {
	const op = "storage.GetAccountSnapshot"

	query := `SELECT uid, created_at, subscription_status, subscription_ends_at,
			      is_suspended, suspended_reason, role
			  FROM users
			  WHERE uid = $1`

	var (
		snap            models.AccountSnapshot
		status, role    string
		endsAt          sql.NullTime
		suspendedReason sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&snap.UserUID, &snap.CreatedAt, &status,
		&endsAt, &snap.IsSuspended, &suspendedReason, &role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}

	snap.SubscriptionStatus = models.SubscriptionStatus(status)
	snap.Role = models.Role(role)
	if endsAt.Valid {
		t := endsAt.Time
		snap.SubscriptionEndsAt = &t
	}
	if suspendedReason.Valid {
		r := suspendedReason.String
		snap.SuspendedReason = &r
	}
	return &snap, nil
}

// ListUsers возвращает пользователей по дате регистрации с пагинацией.
func (s *Storage) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+`
			  FROM users
			  ORDER BY created_at, uid
			  LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetSuspended выставляет или снимает административную блокировку.
func (s *Storage) SetSuspended(ctx context.Context, userUID string, suspended bool, reason *string) error {
	const op = "storage.SetSuspended"

	if !suspended {
		reason = nil
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users
		      SET is_suspended = $1, suspended_reason = $2
		      WHERE uid = $3`, suspended, reason, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return expectOneRow(op, res)
}

// ApplySubscriptionTransition записывает результат события биллинга:
// новый статус и конец оплаченного периода (nil очищает поле).
func (s *Storage) ApplySubscriptionTransition(ctx context.Context, userUID string,
	status models.SubscriptionStatus, endsAt *time.Time) error {
	const op = "storage.ApplySubscriptionTransition"

	res, err := s.DB.ExecContext(ctx, `UPDATE users
		      SET subscription_status = $1, subscription_ends_at = $2
		      WHERE uid = $3`, string(status), endsAt, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return expectOneRow(op, res)
}

func expectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
