// Package reminder периодически находит пробные аккаунты, у которых скоро
// закончится пробный период, и публикует для них напоминания в очередь уведомлений.
//
// Каждое напоминание сначала занимается в хранилище отметкой
// trial_reminder_sent_at, и только потом публикуется. Если публикация не удалась,
// отметка снимается, и аккаунт попадёт в следующий проход.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
	"github.com/magabrotheeeer/stable-manager/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// Repository методы хранилища, нужные планировщику.
type Repository interface {
	FindTrialReminderCandidates(ctx context.Context, createdFrom, createdTo time.Time) ([]*models.User, error)
	MarkTrialReminderSent(ctx context.Context, userUID string, at time.Time) (bool, error)
	ClearTrialReminder(ctx context.Context, userUID string) error
}

// Publisher отправляет сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Scheduler планировщик напоминаний. Тикер принадлежит Run и живёт, пока жив ctx.
type Scheduler struct {
	repo     Repository
	pub      Publisher
	log      *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	window   time.Duration
	now      func() time.Time
}

// NewScheduler создаёт планировщик. window задаёт, за сколько до конца
// пробного периода отправляется напоминание.
func NewScheduler(repo Repository, pub Publisher, log *slog.Logger, m *metrics.Metrics,
	interval, window time.Duration, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		repo:     repo,
		pub:      pub,
		log:      log,
		metrics:  m,
		interval: interval,
		window:   window,
		now:      now,
	}
}

// Run выполняет проход сразу и затем на каждом тике, пока не отменён ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	const op = "reminder.Run"
	log := s.log.With(sl.Op(op))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if sent, err := s.RunOnce(ctx); err != nil {
			log.Error("reminder pass failed", sl.Err(err))
		} else {
			log.Info("reminder pass finished", slog.Int("sent", sent))
		}

		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce обрабатывает текущих кандидатов и возвращает число отправленных напоминаний.
// Ошибка отдельного аккаунта не прерывает проход.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	const op = "reminder.RunOnce"
	log := s.log.With(sl.Op(op))

	now := s.now().UTC()
	// Пробный период кончается в (now, now+window], значит created_at лежит в
	// (now-TrialPeriod, now+window-TrialPeriod].
	from := now.Add(-entitlement.TrialPeriod)
	to := now.Add(s.window - entitlement.TrialPeriod)

	candidates, err := s.repo.FindTrialReminderCandidates(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(candidates) == 0 {
		log.Debug("no trials ending soon")
		return 0, nil
	}
	log.Info("found trials ending soon", slog.Int("count", len(candidates)))

	sent := 0
	for _, user := range candidates {
		if ctx.Err() != nil {
			return sent, fmt.Errorf("%s: %w", op, ctx.Err())
		}
		if s.remind(ctx, log, user, now) {
			sent++
		}
	}
	return sent, nil
}

func (s *Scheduler) remind(ctx context.Context, log *slog.Logger, user *models.User, now time.Time) bool {
	log = log.With(slog.String("user_uid", user.UUID))

	claimed, err := s.repo.MarkTrialReminderSent(ctx, user.UUID, now)
	if err != nil {
		log.Error("failed to claim reminder", sl.Err(err))
		s.metrics.IncTrialReminder("claim_failed")
		return false
	}
	if !claimed {
		log.Debug("reminder already claimed")
		s.metrics.IncTrialReminder("skipped")
		return false
	}

	msg := models.TrialReminder{
		UserUID:    user.UUID,
		Email:      user.Email,
		Username:   user.Username,
		TrialEndAt: entitlement.TrialEnd(user.CreatedAt).UTC(),
	}
	if err = s.pub.Publish(ctx, rabbitmq.TrialEndingRoutingKey, msg); err != nil {
		log.Error("failed to publish reminder", sl.Err(err))
		s.metrics.IncTrialReminder("publish_failed")
		if clearErr := s.repo.ClearTrialReminder(ctx, user.UUID); clearErr != nil {
			log.Error("failed to release reminder claim", sl.Err(clearErr))
		}
		return false
	}

	s.metrics.IncTrialReminder("sent")
	return true
}
