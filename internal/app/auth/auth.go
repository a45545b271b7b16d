// Package auth gRPC-процесс сервиса авторизации.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/magabrotheeeer/stable-manager/internal/config"
	"github.com/magabrotheeeer/stable-manager/internal/grpc/server"
	"github.com/magabrotheeeer/stable-manager/internal/lib/jwt"
	authservice "github.com/magabrotheeeer/stable-manager/internal/services/auth"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// App gRPC-сервер авторизации.
type App struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	db         *storage.Storage
	logger     *slog.Logger
}

// New подключает хранилище и поднимает listener на GRPCAuthAddress.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.auth.New"

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	authService := authservice.NewService(db, jwtMaker, nil)

	lis, err := net.Listen("tcp", cfg.GRPCAuthAddress)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	grpcServer, hs := server.New(server.NewAuthServer(authService, logger), logger)

	return &App{
		grpcServer: grpcServer,
		health:     hs,
		listener:   lis,
		db:         db,
		logger:     logger,
	}, nil
}

// Run обслуживает вызовы до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("auth gRPC service listening", slog.String("address", a.listener.Addr().String()))
		errCh <- a.grpcServer.Serve(a.listener)
	}()

	select {
	case <-ctx.Done():
		a.health.Shutdown()
		a.grpcServer.GracefulStop()
		return a.db.Close()
	case err := <-errCh:
		_ = a.db.Close()
		return err
	}
}
