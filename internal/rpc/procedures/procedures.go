// Package procedures процедуры, доступные через /rpc.
package procedures

import (
	"context"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/rpc"
	"github.com/magabrotheeeer/stable-manager/internal/services/admin"
)

// Имена процедур.
const (
	ProfileGet            = "profile.get"
	BillingStatus         = "billing.status"
	AccountSummary        = "account.summary"
	AdminUnlock           = "admin.unlock"
	AdminListAccounts     = "admin.listAccounts"
	AdminSuspendAccount   = "admin.suspendAccount"
	AdminUnsuspendAccount = "admin.unsuspendAccount"
)

const (
	reasonInvalidPassword  = "INVALID_PASSWORD"
	reasonSelfSuspend      = "SELF_SUSPEND"
	defaultAccountsPerPage = 20
)

// UserReader чтение пользователя по UID.
type UserReader interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// AdminService административные операции.
type AdminService interface {
	Unlock(ctx context.Context, snapshot *models.AccountSnapshot, password string) (models.AdminSession, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]admin.Account, error)
	SuspendAccount(ctx context.Context, actorUID, userUID, reason string) error
	UnsuspendAccount(ctx context.Context, actorUID, userUID string) error
}

// Handlers реализации процедур.
type Handlers struct {
	users     UserReader
	snapshots rpc.SnapshotReader
	admin     AdminService
	now       func() time.Time
}

// New создаёт набор процедур.
func New(users UserReader, snapshots rpc.SnapshotReader, adminSvc AdminService, now func() time.Time) *Handlers {
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		users:     users,
		snapshots: snapshots,
		admin:     adminSvc,
		now:       now,
	}
}

// Procedures связывает процедуры с цепочками guard'ов.
//
// profile.get и billing.status исключены из шлюзовой проверки доступа:
// заблокированный или не оплативший пользователь должен видеть своё состояние.
func (h *Handlers) Procedures(g *rpc.Guards) []rpc.Procedure {
	return []rpc.Procedure{
		rpc.Query(ProfileGet, g.Authed(), h.profile),
		rpc.Query(BillingStatus, g.Authed(), h.billingStatus),
		rpc.Query(AccountSummary, g.Protected(), h.accountSummary),
		rpc.Mutation(AdminUnlock, g.Protected(), h.unlock),
		rpc.Query(AdminListAccounts, g.Admin(), h.listAccounts),
		rpc.Mutation(AdminSuspendAccount, g.Admin(), h.suspend),
		rpc.Mutation(AdminUnsuspendAccount, g.Admin(), h.unsuspend),
	}
}

func mustCaller(ctx context.Context) (rpc.Caller, error) {
	c, ok := rpc.CallerFrom(ctx)
	if !ok {
		return rpc.Caller{}, rpc.NewError(rpc.CodeUnauthorized, "authentication required")
	}
	return c, nil
}
