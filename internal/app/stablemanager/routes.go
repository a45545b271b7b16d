// Package stablemanager HTTP-процесс: шлюз доступа, HTTP-обработчики и
// процедуры /rpc.
package stablemanager

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/stable-manager/internal/adminsession"
	"github.com/magabrotheeeer/stable-manager/internal/http/exempt"
	"github.com/magabrotheeeer/stable-manager/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/stable-manager/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/stable-manager/internal/http/handlers/billing/webhook"
	"github.com/magabrotheeeer/stable-manager/internal/http/handlers/health"
	"github.com/magabrotheeeer/stable-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/rpc"
	"github.com/magabrotheeeer/stable-manager/internal/rpc/procedures"
	"github.com/magabrotheeeer/stable-manager/internal/services/admin"
	"github.com/magabrotheeeer/stable-manager/internal/services/billing"

	_ "github.com/magabrotheeeer/stable-manager/docs"
)

// AuthClient сервис авторизации.
type AuthClient interface {
	middlewarectx.TokenValidator
	login.Service
	register.Service
}

// Storage хранилище аккаунтов.
type Storage interface {
	GetAccountSnapshot(ctx context.Context, userUID string) (*models.AccountSnapshot, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	SetSuspended(ctx context.Context, userUID string, suspended bool, reason *string) error
	ApplySubscriptionTransition(ctx context.Context, userUID string, status models.SubscriptionStatus, endsAt *time.Time) error
	Ping(ctx context.Context) error
}

// Deps зависимости HTTP-роутера.
type Deps struct {
	Log           *slog.Logger
	Metrics       *metrics.Metrics
	Auth          AuthClient
	Storage       Storage
	Sessions      adminsession.Store
	Passwords     admin.PasswordVerifier
	Limiter       *middlewarectx.Limiter
	WebhookSecret string
	Version       string
	Now           func() time.Time
}

// NewRouter собирает маршруты. Проверка доступа шлюза стоит до маршрутизации
// и видит каждый запрос, включая ещё не зарегистрированные пути.
func NewRouter(d Deps) (http.Handler, error) {
	const op = "stablemanager.NewRouter"

	table, err := exempt.New(exempt.AllRoutes...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	guards := rpc.NewGuards(d.Storage, d.Sessions, d.Log, d.Metrics, d.Now)
	adminService := admin.New(d.Storage, d.Sessions, d.Passwords, d.Log)
	handlers := procedures.New(d.Storage, d.Storage, adminService, d.Now)
	rpcRouter, err := rpc.NewRouter(d.Log, d.Metrics, d.Limiter, handlers.Procedures(guards)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	billingService := billing.New(d.Storage, d.Log, d.Metrics)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Authenticate(d.Auth, d.Log),
		middlewarectx.Entitlement(d.Storage, table, d.Log, d.Metrics, d.Now),
	)

	r.Get("/healthz", health.New(d.Log, d.Storage).ServeHTTP)
	r.Get("/version", health.Version(d.Version))
	r.Handle("/metrics", d.Metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(middlewarectx.RateLimit(d.Limiter, d.Log))
			}
			r.Post("/register", register.New(d.Log, d.Auth).ServeHTTP)
			r.Post("/login", login.New(d.Log, d.Auth).ServeHTTP)
		})
		r.Post("/billing/webhook", webhook.New(d.Log, billingService, d.WebhookSecret).ServeHTTP)
	})

	r.Mount("/rpc", rpcRouter.Routes())

	return r, nil
}
