package rpc

import (
	"context"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

type stage int

const (
	stageNone stage = iota
	stageIdentity
	stageEntitlement
	stageAdminSession
)

type callerKey struct{}

// Caller то, что guard'ы установили о вызывающем.
type Caller struct {
	Identity models.Identity
	// Snapshot заполняет guard доступа.
	Snapshot *models.AccountSnapshot
	// Session заполняет guard админской сессии.
	Session *models.AdminSession

	passed stage
}

// CallerFrom возвращает вызывающего, прошедшего guard'ы цепочки.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.passed == stageNone {
		return Caller{}, false
	}
	return c, true
}

func callerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

func withCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}
