package stablemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/magabrotheeeer/stable-manager/internal/adminsession"
	"github.com/magabrotheeeer/stable-manager/internal/cache"
	"github.com/magabrotheeeer/stable-manager/internal/config"
	"github.com/magabrotheeeer/stable-manager/internal/grpc/client"
	"github.com/magabrotheeeer/stable-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stable-manager/internal/lib/jwt"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
	"github.com/magabrotheeeer/stable-manager/internal/migrations"
	"github.com/magabrotheeeer/stable-manager/internal/services/auth"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

const (
	backendPostgres = "postgres"
	backendRedis    = "redis"
	shutdownTimeout = 15 * time.Second
)

// App HTTP-процесс.
type App struct {
	server     *http.Server
	logger     *slog.Logger
	db         *storage.Storage
	cache      *cache.Cache
	authClient *client.AuthClient
}

// New подключает хранилища и клиента авторизации и собирает HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "stablemanager.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{logger: logger, db: db}

	var sessions adminsession.Store
	switch cfg.SessionBackend {
	case backendRedis:
		app.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sessions = adminsession.NewRedisStore(app.cache, cfg.SessionTTL, nil)
	case backendPostgres, "":
		sessions = adminsession.NewPostgresStore(db, cfg.SessionTTL, nil)
	default:
		app.close()
		return nil, fmt.Errorf("%s: unknown admin session backend %q", op, cfg.SessionBackend)
	}

	app.authClient, err = client.NewAuthClient(cfg.GRPCAuthAddress)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Пароль при разблокировке сверяется локально: хранилище общее с сервисом авторизации.
	passwords := auth.NewService(db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), nil)

	router, err := NewRouter(Deps{
		Log:           logger,
		Metrics:       metrics.New(),
		Auth:          app.authClient,
		Storage:       db,
		Sessions:      sessions,
		Passwords:     passwords,
		Limiter:       middlewarectx.NewLimiter(cfg.RPS, cfg.Burst),
		WebhookSecret: cfg.WebhookSecret,
		Version:       cfg.Version,
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

// Run обслуживает запросы до отмены ctx, затем плавно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.authClient != nil {
		if err := a.authClient.Close(); err != nil {
			a.logger.Error("failed to close auth client", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
