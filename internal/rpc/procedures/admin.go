package procedures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/rpc"
	"github.com/magabrotheeeer/stable-manager/internal/services/admin"
	"github.com/magabrotheeeer/stable-manager/internal/services/auth"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// UnlockInput вход admin.unlock.
type UnlockInput struct {
	Password string `json:"password" validate:"required"`
}

// UnlockResult ответ admin.unlock.
type UnlockResult struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ListAccountsInput вход admin.listAccounts.
type ListAccountsInput struct {
	Limit  int `json:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `json:"offset" validate:"min=0"`
}

// AccountsPage ответ admin.listAccounts.
type AccountsPage struct {
	Accounts []admin.Account `json:"accounts"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// SuspendInput вход admin.suspendAccount.
type SuspendInput struct {
	UserUID string `json:"userId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"max=500"`
}

// UnsuspendInput вход admin.unsuspendAccount.
type UnsuspendInput struct {
	UserUID string `json:"userId" validate:"required,uuid"`
}

// SuspensionResult ответ на блокировку и разблокировку.
type SuspensionResult struct {
	UserUID     string `json:"userId"`
	IsSuspended bool   `json:"isSuspended"`
}

// unlock идёт по цепочке Protected: роль проверяется по снимку аккаунта,
// пароль проверяется повторно.
func (h *Handlers) unlock(ctx context.Context, in UnlockInput) (UnlockResult, error) {
	const op = "procedures.unlock"

	c, err := mustCaller(ctx)
	if err != nil {
		return UnlockResult{}, err
	}
	session, err := h.admin.Unlock(ctx, c.Snapshot, in.Password)
	switch {
	case errors.Is(err, admin.ErrNotAdmin):
		return UnlockResult{}, rpc.WithReason(rpc.CodeForbidden, rpc.ReasonAdminRequired, "admin role required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return UnlockResult{}, rpc.WithReason(rpc.CodeForbidden, reasonInvalidPassword, "invalid password")
	case err != nil:
		return UnlockResult{}, fmt.Errorf("%s: %w", op, err)
	}
	return UnlockResult{SessionID: session.ID, ExpiresAt: session.ExpiresAt.UTC()}, nil
}

func (h *Handlers) listAccounts(ctx context.Context, in ListAccountsInput) (AccountsPage, error) {
	const op = "procedures.listAccounts"

	limit := in.Limit
	if limit == 0 {
		limit = defaultAccountsPerPage
	}
	accounts, err := h.admin.ListAccounts(ctx, limit, in.Offset)
	if err != nil {
		return AccountsPage{}, fmt.Errorf("%s: %w", op, err)
	}
	return AccountsPage{Accounts: accounts, Limit: limit, Offset: in.Offset}, nil
}

func (h *Handlers) suspend(ctx context.Context, in SuspendInput) (SuspensionResult, error) {
	const op = "procedures.suspend"

	c, err := mustCaller(ctx)
	if err != nil {
		return SuspensionResult{}, err
	}
	err = h.admin.SuspendAccount(ctx, c.Identity.UserUID, in.UserUID, in.Reason)
	if err := suspensionError(op, err); err != nil {
		return SuspensionResult{}, err
	}
	return SuspensionResult{UserUID: in.UserUID, IsSuspended: true}, nil
}

func (h *Handlers) unsuspend(ctx context.Context, in UnsuspendInput) (SuspensionResult, error) {
	const op = "procedures.unsuspend"

	c, err := mustCaller(ctx)
	if err != nil {
		return SuspensionResult{}, err
	}
	err = h.admin.UnsuspendAccount(ctx, c.Identity.UserUID, in.UserUID)
	if err := suspensionError(op, err); err != nil {
		return SuspensionResult{}, err
	}
	return SuspensionResult{UserUID: in.UserUID, IsSuspended: false}, nil
}

func suspensionError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, admin.ErrSelfSuspend):
		return rpc.WithReason(rpc.CodeBadRequest, reasonSelfSuspend, "cannot suspend own account")
	case errors.Is(err, storage.ErrNotFound):
		return rpc.NewError(rpc.CodeNotFound, "account not found")
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
