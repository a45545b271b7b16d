// Package client gRPC-клиент сервиса авторизации для HTTP-шлюза.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	authpb "github.com/magabrotheeeer/stable-manager/internal/grpc/gen"
	"github.com/magabrotheeeer/stable-manager/internal/models"
)

// AuthClient обёртка над authpb.AuthServiceClient.
type AuthClient struct {
	conn   *grpc.ClientConn
	client authpb.AuthServiceClient
}

// NewAuthClient создаёт клиента. Соединение устанавливается лениво при первом вызове.
func NewAuthClient(addr string, opts ...grpc.DialOption) (*AuthClient, error) {
	const op = "client.NewAuthClient"

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &AuthClient{conn: conn, client: authpb.NewAuthServiceClient(conn)}, nil
}

// Close закрывает соединение.
func (a *AuthClient) Close() error {
	return a.conn.Close()
}

// Login возвращает access-токен. Ошибки сохраняют gRPC-статус сервера.
func (a *AuthClient) Login(ctx context.Context, username, password string) (*authpb.LoginResponse, error) {
	return a.client.Login(ctx, &authpb.LoginRequest{
		Username: username,
		Password: password,
	})
}

// Register регистрирует пользователя и возвращает его UID.
func (a *AuthClient) Register(ctx context.Context, email, username, password string) (string, error) {
	resp, err := a.client.Register(ctx, &authpb.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	return resp.GetUserUid(), nil
}

// ValidateToken возвращает идентичность владельца токена.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (models.Identity, error) {
	resp, err := a.client.ValidateToken(ctx, &authpb.ValidateTokenRequest{
		Token: token,
	})
	if err != nil {
		return models.Identity{}, err
	}
	return models.Identity{
		UserUID:  resp.GetUserUid(),
		Username: resp.GetUsername(),
		Role:     models.Role(resp.GetRole()),
	}, nil
}
