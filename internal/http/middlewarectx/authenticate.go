package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// TokenValidator проверяет access-токен, обычно через gRPC-сервис авторизации.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (models.Identity, error)
}

// Authenticate разбирает заголовок Authorization и при валидном токене кладёт
// идентичность в контекст. Запрос без идентичности идёт дальше как анонимный:
// отказ за отсутствие аутентификации выносят охранники процедур.
func Authenticate(validator TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := validator.ValidateToken(r.Context(), tokenStr)
			if err != nil || identity.UserUID == "" {
				log.Debug("token rejected, continuing anonymously",
					sl.Op(op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
