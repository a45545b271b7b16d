// Package entitlement решает, может ли аккаунт пользоваться продуктом в данный момент.
//
// Evaluate чистая функция от снимка аккаунта и текущего времени, без ввода-вывода.
// Её используют и HTTP-шлюз, и цепочка guard'ов процедур, поэтому правила
// пробного периода и порядок проверок существуют только здесь.
package entitlement

import (
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// TrialPeriod длина пробного периода от даты регистрации.
const TrialPeriod = 7 * 24 * time.Hour

const (
	msgContactSupport      = "Please contact support"
	msgTrialExpired        = "Your free trial has ended. Please subscribe to continue."
	msgSubscriptionExpired = "Your subscription has expired. Please renew to continue."
	msgSubscriptionEnded   = "Your subscription has ended. Please resubscribe to continue."
	msgUnknownStatus       = "Your account status could not be verified. Please contact support."
)

// TrialEnd момент окончания пробного периода для аккаунта, созданного в createdAt.
func TrialEnd(createdAt time.Time) time.Time {
	return createdAt.Add(TrialPeriod)
}

// Evaluate проверяет правила в фиксированном порядке, первое совпадение побеждает:
// блокировка, пробный период, истёкшая подписка, отменённая подписка, остальное.
func Evaluate(s models.AccountSnapshot, now time.Time) Decision {
	if s.IsSuspended {
		msg := msgContactSupport
		if s.SuspendedReason != nil && strings.TrimSpace(*s.SuspendedReason) != "" {
			msg = *s.SuspendedReason
		}
		return Deny(CodeAccountSuspended, http.StatusForbidden, msg, nil)
	}

	switch s.SubscriptionStatus {
	case models.StatusTrial:
		trialEnd := TrialEnd(s.CreatedAt)
		if now.After(trialEnd) {
			return Deny(CodeTrialExpired, http.StatusPaymentRequired, msgTrialExpired, map[string]any{
				"trialEndedAt": trialEnd.UTC().Format(time.RFC3339),
			})
		}
		return Allow()

	case models.StatusExpired, models.StatusOverdue:
		return Deny(CodeSubscriptionExpired, http.StatusPaymentRequired, msgSubscriptionExpired, nil)

	case models.StatusCancelled:
		// Отсутствие даты окончания значит, что grace-период ещё не рассчитан.
		if s.SubscriptionEndsAt != nil && now.After(*s.SubscriptionEndsAt) {
			return Deny(CodeSubscriptionEnded, http.StatusPaymentRequired, msgSubscriptionEnded, map[string]any{
				"subscriptionEndedAt": s.SubscriptionEndsAt.UTC().Format(time.RFC3339),
			})
		}
		return Allow()

	case models.StatusActive:
		return Allow()

	default:
		return Deny(CodeUnknownStatus, http.StatusForbidden, msgUnknownStatus, map[string]any{
			"status": string(s.SubscriptionStatus),
		})
	}
}
