package procedures

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/rpc"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// Profile ответ profile.get.
type Profile struct {
	UserUID         string                    `json:"userId"`
	Username        string                    `json:"username"`
	Email           string                    `json:"email"`
	Role            models.Role               `json:"role"`
	Status          models.SubscriptionStatus `json:"subscriptionStatus"`
	CreatedAt       time.Time                 `json:"createdAt"`
	IsSuspended     bool                      `json:"isSuspended"`
	SuspendedReason *string                   `json:"suspendedReason,omitempty"`
}

// BillingState ответ billing.status.
type BillingState struct {
	Status             models.SubscriptionStatus `json:"subscriptionStatus"`
	Allowed            bool                      `json:"allowed"`
	Code               string                    `json:"code"`
	Message            string                    `json:"message,omitempty"`
	TrialEndsAt        *time.Time                `json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time                `json:"subscriptionEndsAt,omitempty"`
}

// Summary ответ account.summary.
type Summary struct {
	Status             models.SubscriptionStatus `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time                `json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time                `json:"subscriptionEndsAt,omitempty"`
	// DaysLeft дни до конца пробного или grace-периода, округлённые вверх.
	DaysLeft *int `json:"daysLeft,omitempty"`
}

func (h *Handlers) profile(ctx context.Context, _ rpc.NoInput) (Profile, error) {
	const op = "procedures.profile"

	c, err := mustCaller(ctx)
	if err != nil {
		return Profile{}, err
	}
	user, err := h.users.GetUser(ctx, c.Identity.UserUID)
	if errors.Is(err, storage.ErrNotFound) {
		return Profile{}, rpc.NewError(rpc.CodeUnauthorized, "account not found")
	}
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	return Profile{
		UserUID:         user.UUID,
		Username:        user.Username,
		Email:           user.Email,
		Role:            user.Role,
		Status:          user.SubscriptionStatus,
		CreatedAt:       user.CreatedAt.UTC(),
		IsSuspended:     user.IsSuspended,
		SuspendedReason: user.SuspendedReason,
	}, nil
}

func (h *Handlers) billingStatus(ctx context.Context, _ rpc.NoInput) (BillingState, error) {
	const op = "procedures.billingStatus"

	c, err := mustCaller(ctx)
	if err != nil {
		return BillingState{}, err
	}
	snap, err := h.snapshots.GetAccountSnapshot(ctx, c.Identity.UserUID)
	if errors.Is(err, storage.ErrNotFound) {
		return BillingState{}, rpc.NewError(rpc.CodeUnauthorized, "account not found")
	}
	if err != nil {
		return BillingState{}, fmt.Errorf("%s: %w", op, err)
	}

	decision := entitlement.Evaluate(*snap, h.now())
	state := BillingState{
		Status:             snap.SubscriptionStatus,
		Allowed:            decision.Allowed,
		Code:               "ALLOW",
		Message:            decision.Message,
		SubscriptionEndsAt: utcPtr(snap.SubscriptionEndsAt),
	}
	if !decision.Allowed {
		state.Code = string(decision.Code)
	}
	if snap.SubscriptionStatus == models.StatusTrial {
		end := entitlement.TrialEnd(snap.CreatedAt).UTC()
		state.TrialEndsAt = &end
	}
	return state, nil
}

func (h *Handlers) accountSummary(ctx context.Context, _ rpc.NoInput) (Summary, error) {
	c, err := mustCaller(ctx)
	if err != nil {
		return Summary{}, err
	}
	if c.Snapshot == nil {
		return Summary{}, rpc.NewError(rpc.CodeInternal, "internal error")
	}
	snap := c.Snapshot
	now := h.now()

	s := Summary{
		Status:             snap.SubscriptionStatus,
		SubscriptionEndsAt: utcPtr(snap.SubscriptionEndsAt),
	}
	switch snap.SubscriptionStatus {
	case models.StatusTrial:
		end := entitlement.TrialEnd(snap.CreatedAt).UTC()
		s.TrialEndsAt = &end
		s.DaysLeft = daysUntil(now, end)
	case models.StatusCancelled:
		if snap.SubscriptionEndsAt != nil {
			s.DaysLeft = daysUntil(now, *snap.SubscriptionEndsAt)
		}
	}
	return s, nil
}

func daysUntil(now, end time.Time) *int {
	left := end.Sub(now)
	if left < 0 {
		left = 0
	}
	days := int(math.Ceil(left.Hours() / 24))
	return &days
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
