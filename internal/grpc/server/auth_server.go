// Package server реализует gRPC-сервер для авторизационного сервиса.
//
// AuthServer обрабатывает gRPC-запросы регистрации, входа и валидации JWT токенов,
// переводит доменные ошибки в коды gRPC и делегирует бизнес-логику AuthService.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authpb "github.com/magabrotheeeer/stable-manager/internal/grpc/gen"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/services/auth"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// AuthService бизнес-логика, которую обслуживает сервер.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	ValidateToken(ctx context.Context, token string) (models.Identity, error)
}

// AuthServer реализует authpb.AuthServiceServer.
type AuthServer struct {
	authpb.UnimplementedAuthServiceServer
	authService AuthService
	log         *slog.Logger
}

var _ authpb.AuthServiceServer = (*AuthServer)(nil)

// NewAuthServer создает новый экземпляр AuthServer с указанным сервисом аутентификации и логгером.
func NewAuthServer(authService AuthService, logger *slog.Logger) *AuthServer {
	return &AuthServer{
		authService: authService,
		log:         logger,
	}
}

// Register создает нового пользователя.
func (s *AuthServer) Register(ctx context.Context, req *authpb.RegisterRequest) (*authpb.RegisterResponse, error) {
	const op = "server.Register"
	log := s.log.With(sl.Op(op), slog.String("username", req.GetUsername()))

	if strings.TrimSpace(req.GetUsername()) == "" || strings.TrimSpace(req.GetEmail()) == "" || req.GetPassword() == "" {
		return nil, status.Error(codes.InvalidArgument, "email, username and password are required")
	}

	uid, err := s.authService.Register(ctx, req.GetEmail(), req.GetUsername(), req.GetPassword())
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("user already exists")
			return nil, status.Error(codes.AlreadyExists, "user already exists")
		}
		log.Error("register failed", sl.Err(err))
		return nil, status.Error(codes.Internal, "registration failed")
	}
	return &authpb.RegisterResponse{
		UserUid: uid,
		Message: "user created successfully",
	}, nil
}

// Login проверяет пользователя и генерирует JWT.
func (s *AuthServer) Login(ctx context.Context, req *authpb.LoginRequest) (*authpb.LoginResponse, error) {
	const op = "server.Login"
	log := s.log.With(sl.Op(op), slog.String("username", req.GetUsername()))

	token, user, err := s.authService.Login(ctx, req.GetUsername(), req.GetPassword())
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Info("invalid credentials")
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		log.Error("login failed", sl.Err(err))
		return nil, status.Error(codes.Internal, "login failed")
	}

	return &authpb.LoginResponse{
		Token:   token,
		UserUid: user.UUID,
		Role:    string(user.Role),
	}, nil
}

// ValidateToken проверяет валидность JWT и возвращает данные пользователя.
func (s *AuthServer) ValidateToken(ctx context.Context, req *authpb.ValidateTokenRequest) (*authpb.ValidateTokenResponse, error) {
	const op = "server.ValidateToken"

	identity, err := s.authService.ValidateToken(ctx, req.GetToken())
	if err != nil {
		s.log.Debug("invalid token", sl.Op(op), sl.Err(err))
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return &authpb.ValidateTokenResponse{
		UserUid:  identity.UserUID,
		Username: identity.Username,
		Role:     string(identity.Role),
	}, nil
}
