package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/stable-manager/internal/adminsession"
	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
	"github.com/magabrotheeeer/stable-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

const msgUnlockRequired = "session expired, please unlock"

// Guard проверка перед вызовом процедуры. Возвращает контекст, дополненный
// установленными сведениями о вызывающем, или ошибку, прерывающую цепочку.
type Guard func(ctx context.Context) (context.Context, error)

// Chain упорядоченный набор guard'ов. Первый отказ прерывает цепочку.
type Chain []Guard

// Run прогоняет guard'ы по порядку.
func (c Chain) Run(ctx context.Context) (context.Context, error) {
	for _, g := range c {
		var err error
		if ctx, err = g(ctx); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// SnapshotReader читает снимок аккаунта.
type SnapshotReader interface {
	GetAccountSnapshot(ctx context.Context, userUID string) (*models.AccountSnapshot, error)
}

// Guards фабрика guard'ов и стандартных цепочек.
type Guards struct {
	snapshots SnapshotReader
	sessions  adminsession.Store
	log       *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewGuards создаёт фабрику guard'ов.
func NewGuards(snapshots SnapshotReader, sessions adminsession.Store, log *slog.Logger,
	m *metrics.Metrics, now func() time.Time) *Guards {
	if now == nil {
		now = time.Now
	}
	return &Guards{
		snapshots: snapshots,
		sessions:  sessions,
		log:       log,
		metrics:   m,
		now:       now,
	}
}

// Authed требует идентичность.
func (g *Guards) Authed() Chain { return Chain{g.Identity} }

// Protected требует идентичность и доступ к продукту.
func (g *Guards) Protected() Chain { return Chain{g.Identity, g.Entitlement} }

// Admin требует идентичность, доступ и действующую админскую сессию.
func (g *Guards) Admin() Chain { return Chain{g.Identity, g.Entitlement, g.AdminSession} }

// Identity требует вызывающего, установленного по токену.
func (g *Guards) Identity(ctx context.Context) (context.Context, error) {
	identity, ok := middlewarectx.IdentityFrom(ctx)
	if !ok {
		return ctx, NewError(CodeUnauthorized, "authentication required")
	}
	c := callerFrom(ctx)
	c.Identity = identity
	if c.passed < stageIdentity {
		c.passed = stageIdentity
	}
	return withCaller(ctx, c), nil
}

// Entitlement проверяет доступ тем же Evaluate, что и шлюз. Снимок, уже
// оценённый шлюзом для этого же пользователя, переиспользуется вместе с
// моментом оценки. Ошибка чтения здесь означает отказ.
func (g *Guards) Entitlement(ctx context.Context) (context.Context, error) {
	const op = "rpc.Entitlement"

	c := callerFrom(ctx)
	if c.passed < stageIdentity {
		g.log.Error("entitlement guard before identity guard", sl.Op(op))
		return ctx, NewError(CodeInternal, "internal error")
	}
	log := g.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("user_uid", c.Identity.UserUID),
	)

	var (
		snap models.AccountSnapshot
		at   time.Time
	)
	if evaluated, ok := middlewarectx.SnapshotFrom(ctx, c.Identity.UserUID); ok {
		snap, at = evaluated.Snapshot, evaluated.EvaluatedAt
	} else {
		fresh, err := g.snapshots.GetAccountSnapshot(ctx, c.Identity.UserUID)
		if errors.Is(err, storage.ErrNotFound) {
			log.Info("account not found")
			return ctx, NewError(CodeUnauthorized, "account not found")
		}
		if err != nil {
			log.Error("failed to read account snapshot", sl.Err(err))
			g.metrics.IncCheckFailure(metrics.LayerProcedure)
			return ctx, NewError(CodeInternal, "internal error")
		}
		snap, at = *fresh, g.now()
	}

	decision := entitlement.Evaluate(snap, at)
	g.metrics.IncDecision(metrics.LayerProcedure, string(decision.Code))
	if !decision.Allowed {
		log.Info("entitlement denied",
			slog.String("layer", metrics.LayerProcedure),
			slog.String("code", string(decision.Code)),
		)
		return ctx, FromDecision(decision)
	}

	c.Snapshot = &snap
	if c.passed < stageEntitlement {
		c.passed = stageEntitlement
	}
	return withCaller(ctx, c), nil
}

// AdminSession требует роль admin в снимке аккаунта и действующую
// админскую сессию. При ошибке чтения сессии доступ запрещается.
func (g *Guards) AdminSession(ctx context.Context) (context.Context, error) {
	const op = "rpc.AdminSession"

	c := callerFrom(ctx)
	if c.passed < stageEntitlement || c.Snapshot == nil {
		g.log.Error("admin session guard before entitlement guard", sl.Op(op))
		return ctx, NewError(CodeInternal, "internal error")
	}
	log := g.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("user_uid", c.Identity.UserUID),
	)

	if !c.Snapshot.IsAdmin() {
		log.Info("admin role required")
		return ctx, WithReason(CodeForbidden, ReasonAdminRequired, "admin role required")
	}

	session, err := g.sessions.Get(ctx, c.Identity.UserUID)
	if err != nil {
		log.Error("failed to read admin session", sl.Err(err))
		return ctx, WithReason(CodeForbidden, ReasonAdminSessionUnavailable, msgUnlockRequired)
	}
	if !adminsession.IsValid(session, g.now()) {
		log.Info("admin session missing or expired")
		return ctx, WithReason(CodeForbidden, ReasonAdminSessionRequired, msgUnlockRequired)
	}

	c.Session = session
	c.passed = stageAdminSession
	return withCaller(ctx, c), nil
}
