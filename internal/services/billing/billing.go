// Package billing применяет события платёжного процессора к состоянию подписки
// аккаунта. Это единственный писатель статуса подписки; проверка доступа
// только читает результат.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// События платёжного процессора.
const (
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentFailed         = "payment.failed"
)

var (
	// ErrUnknownEvent событие не меняет состояние подписки.
	ErrUnknownEvent = errors.New("unknown billing event")
	// ErrMissingUser в событии нет user_uid.
	ErrMissingUser = errors.New("billing event without user_uid")
	// ErrUnknownUser пользователь из события не найден.
	ErrUnknownUser = errors.New("billing event for unknown user")
)

// Event тело webhook-запроса.
type Event struct {
	Event  string      `json:"event"`
	Object EventObject `json:"object"`
}

// EventObject данные подписки в событии.
type EventObject struct {
	UserUID          string     `json:"user_uid"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// Repository запись перехода статуса подписки.
type Repository interface {
	ApplySubscriptionTransition(ctx context.Context, userUID string, status models.SubscriptionStatus, endsAt *time.Time) error
}

// Service обработчик событий биллинга.
type Service struct {
	repo    Repository
	log     *slog.Logger
	metrics *metrics.Metrics
}

// New создаёт сервис биллинга.
func New(repo Repository, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, log: log, metrics: m}
}

// unknownEventLabel метка метрик для событий вне списка известных.
const unknownEventLabel = "unknown"

type transition struct {
	event  string
	status models.SubscriptionStatus
	endsAt *time.Time
}

// transitionFor переводит событие в новый статус и каноническое имя события. ends_at осмыслен только
// для cancelled, в остальных статусах он очищается.
func transitionFor(ev Event) (transition, bool) {
	name := strings.ToLower(ev.Event)
	switch name {
	case EventSubscriptionActivated, EventPaymentSucceeded:
		return transition{event: name, status: models.StatusActive}, true
	case EventSubscriptionCancelled:
		return transition{event: name, status: models.StatusCancelled, endsAt: ev.Object.CurrentPeriodEnd}, true
	case EventPaymentFailed:
		return transition{event: name, status: models.StatusOverdue}, true
	case EventSubscriptionExpired:
		return transition{event: name, status: models.StatusExpired}, true
	default:
		return transition{}, false
	}
}

// ProcessEvent применяет событие к аккаунту.
func (s *Service) ProcessEvent(ctx context.Context, ev Event) error {
	const op = "billing.ProcessEvent"
	log := s.log.With(sl.Op(op), slog.String("event", ev.Event), slog.String("user_uid", ev.Object.UserUID))

	tr, ok := transitionFor(ev)
	if !ok {
		s.metrics.IncBillingEvent(unknownEventLabel, "ignored")
		return fmt.Errorf("%s: %w", op, ErrUnknownEvent)
	}
	if strings.TrimSpace(ev.Object.UserUID) == "" {
		s.metrics.IncBillingEvent(tr.event, "rejected")
		return fmt.Errorf("%s: %w", op, ErrMissingUser)
	}

	var endsAt *time.Time
	if tr.endsAt != nil {
		t := tr.endsAt.UTC()
		endsAt = &t
	}
	err := s.repo.ApplySubscriptionTransition(ctx, ev.Object.UserUID, tr.status, endsAt)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.IncBillingEvent(tr.event, "unknown_user")
		return fmt.Errorf("%s: %w", op, ErrUnknownUser)
	}
	if err != nil {
		s.metrics.IncBillingEvent(tr.event, "failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.IncBillingEvent(tr.event, "applied")
	log.Info("subscription transition applied", slog.String("status", string(tr.status)))
	return nil
}
