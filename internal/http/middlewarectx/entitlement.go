package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
	"github.com/magabrotheeeer/stable-manager/internal/http/exempt"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// SnapshotReader читает снимок аккаунта.
type SnapshotReader interface {
	GetAccountSnapshot(ctx context.Context, userUID string) (*models.AccountSnapshot, error)
}

// Entitlement шлюзовая проверка доступа. Выполняется для каждого запроса до
// маршрутизации:
//   - исключённые пути и анонимные запросы проходят без проверки;
//   - отказ политики завершает запрос телом {error, message, code, ...};
//   - ошибка чтения снимка не блокирует запрос, он идёт дальше.
//
// Прочитанный снимок и момент оценки кладутся в контекст для процедурного слоя.
func Entitlement(reader SnapshotReader, table *exempt.Table, log *slog.Logger,
	m *metrics.Metrics, now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Entitlement"

			if _, ok := table.IsExempt(r.URL.Path); ok {
				next.ServeHTTP(w, r)
				return
			}
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				sl.Op(op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("user_uid", identity.UserUID),
			)

			snap, err := reader.GetAccountSnapshot(r.Context(), identity.UserUID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					log.Warn("account not found, forwarding")
				} else {
					log.Warn("entitlement check failed, forwarding", sl.Err(err))
					m.IncCheckFailure(metrics.LayerGateway)
				}
				next.ServeHTTP(w, r)
				return
			}

			at := now()
			decision := entitlement.Evaluate(*snap, at)
			m.IncDecision(metrics.LayerGateway, string(decision.Code))

			if !decision.Allowed {
				log.Info("entitlement denied",
					slog.String("layer", metrics.LayerGateway),
					slog.String("code", string(decision.Code)),
				)
				render.Status(r, decision.Status)
				render.JSON(w, r, decision.Body())
				return
			}

			ctx := WithSnapshot(r.Context(), EvaluatedSnapshot{
				UserUID:     identity.UserUID,
				Snapshot:    *snap,
				EvaluatedAt: at,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
