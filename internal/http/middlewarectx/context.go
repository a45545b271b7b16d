// Package middlewarectx HTTP middleware шлюза и значения, которые они кладут
// в контекст запроса: идентичность вызывающего и снимок аккаунта, по которому
// шлюз уже принял решение.
package middlewarectx

import (
	"context"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// IdentityKey ключ идентичности вызывающего.
	IdentityKey Key = "identity"
	// SnapshotKey ключ снимка аккаунта, прочитанного шлюзом.
	SnapshotKey Key = "account_snapshot"
)

// EvaluatedSnapshot снимок аккаунта и момент, на который шлюз его оценил.
// Процедурный слой переиспользует его, чтобы оба слоя судили по одним данным.
type EvaluatedSnapshot struct {
	UserUID     string
	Snapshot    models.AccountSnapshot
	EvaluatedAt time.Time
}

// WithIdentity кладёт идентичность в контекст.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFrom достаёт идентичность из контекста.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(models.Identity)
	if !ok || identity.UserUID == "" {
		return models.Identity{}, false
	}
	return identity, true
}

// WithSnapshot кладёт оценённый снимок в контекст.
func WithSnapshot(ctx context.Context, s EvaluatedSnapshot) context.Context {
	return context.WithValue(ctx, SnapshotKey, s)
}

// SnapshotFrom достаёт оценённый снимок для пользователя userUID.
// Снимок другого пользователя не возвращается.
func SnapshotFrom(ctx context.Context, userUID string) (EvaluatedSnapshot, bool) {
	s, ok := ctx.Value(SnapshotKey).(EvaluatedSnapshot)
	if !ok || s.UserUID == "" || s.UserUID != userUID {
		return EvaluatedSnapshot{}, false
	}
	return s, true
}
