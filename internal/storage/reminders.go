package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// FindTrialReminderCandidates находит пробные аккаунты, созданные в [createdFrom, createdTo],
// которым напоминание ещё не отправлялось.
func (s *Storage) FindTrialReminderCandidates(ctx context.Context, createdFrom, createdTo time.Time) ([]*models.User, error) {
	const op = "storage.FindTrialReminderCandidates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+`
			  FROM users
			  WHERE subscription_status = 'trial'
			    AND trial_reminder_sent_at IS NULL
			    AND is_suspended = false
			    AND created_at BETWEEN $1 AND $2
			  ORDER BY created_at`, createdFrom, createdTo)
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

// MarkTrialReminderSent атомарно помечает напоминание отправленным.
// Возвращает false, если отметка уже стояла.
func (s *Storage) MarkTrialReminderSent(ctx context.Context, userUID string, at time.Time) (bool, error) {
	const op = "storage.MarkTrialReminderSent"

	res, err := s.DB.ExecContext(ctx, `UPDATE users
		      SET trial_reminder_sent_at = $1
		      WHERE uid = $2 AND trial_reminder_sent_at IS NULL`, at, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// ClearTrialReminder снимает отметку, если публикация напоминания не удалась.
func (s *Storage) ClearTrialReminder(ctx context.Context, userUID string) error {
	const op = "storage.ClearTrialReminder"

	if _, err := s.DB.ExecContext(ctx, `UPDATE users
		      SET trial_reminder_sent_at = NULL
		      WHERE uid = $1`, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
