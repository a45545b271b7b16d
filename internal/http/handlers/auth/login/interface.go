package login

import (
	"context"

	authpb "github.com/magabrotheeeer/stable-manager/internal/grpc/gen"
)

// Service описывает вход через сервис авторизации.
type Service interface {
	Login(ctx context.Context, username, password string) (*authpb.LoginResponse, error)
}
