// Package main Stable Manager API
//
// @title           Stable Manager API
// @version         1.0
// @description     Регистрация, вход, webhook биллинга и процедуры /rpc с проверкой доступа по подписке.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/stable-manager/internal/app/stablemanager"
	"github.com/magabrotheeeer/stable-manager/internal/config"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.Setup(cfg.Env, os.Stdout)

	logger.Info("starting stable-manager", slog.String("env", cfg.Env), slog.String("version", cfg.Version))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := stablemanager.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("stable-manager stopped gracefully")
}
