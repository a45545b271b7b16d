package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/services/auth"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

type UserRepoMock struct {
	mock.Mock
}

func (m *UserRepoMock) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *UserRepoMock) SetSuspended(ctx context.Context, userUID string, suspended bool, reason *string) error {
	args := m.Called(ctx, userUID, suspended, reason)
	return args.Error(0)
}

type SessionStoreMock struct {
	mock.Mock
}

func (m *SessionStoreMock) Issue(ctx context.Context, userUID string) (models.AdminSession, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(models.AdminSession), args.Error(1)
}

func (m *SessionStoreMock) Get(ctx context.Context, userUID string) (*models.AdminSession, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AdminSession), args.Error(1)
}

type PasswordVerifierMock struct {
	mock.Mock
}

func (m *PasswordVerifierMock) VerifyPassword(ctx context.Context, userUID, password string) error {
	args := m.Called(ctx, userUID, password)
	return args.Error(0)
}

func newTestService(users *UserRepoMock, sessions *SessionStoreMock, pw *PasswordVerifierMock) *Service {
	return New(users, sessions, pw, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_Unlock(t *testing.T) {
	adminSnap := &models.AccountSnapshot{UserUID: "a1", Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive}
	memberSnap := &models.AccountSnapshot{UserUID: "m1", Role: models.RoleMember, SubscriptionStatus: models.StatusActive}
	session := models.AdminSession{ID: "s1", UserUID: "a1", ExpiresAt: time.Date(2025, 3, 1, 12, 15, 0, 0, time.UTC)}

	tests := []struct {
		name       string
		snapshot   *models.AccountSnapshot
		setupMocks func(s *SessionStoreMock, pw *PasswordVerifierMock)
		wantErr    error
	}{
		{
			name:     "admin with correct password",
			snapshot: adminSnap,
			setupMocks: func(s *SessionStoreMock, pw *PasswordVerifierMock) {
				pw.On("VerifyPassword", mock.Anything, "a1", "secret").Return(nil).Once()
				s.On("Issue", mock.Anything, "a1").Return(session, nil).Once()
			},
		},
		{
			name:       "member is rejected before password check",
			snapshot:   memberSnap,
			setupMocks: func(_ *SessionStoreMock, _ *PasswordVerifierMock) {},
			wantErr:    ErrNotAdmin,
		},
		{
			name:     "wrong password",
			snapshot: adminSnap,
			setupMocks: func(_ *SessionStoreMock, pw *PasswordVerifierMock) {
				pw.On("VerifyPassword", mock.Anything, "a1", "secret").Return(auth.ErrInvalidCredentials).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := new(SessionStoreMock)
			pw := new(PasswordVerifierMock)
			tt.setupMocks(sessions, pw)

			got, err := newTestService(new(UserRepoMock), sessions, pw).Unlock(context.Background(), tt.snapshot, "secret")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, session, got)
			}
			sessions.AssertExpectations(t)
			pw.AssertExpectations(t)
		})
	}
}

func TestService_ListAccounts(t *testing.T) {
	users := new(UserRepoMock)
	users.On("ListUsers", mock.Anything, 50, 0).Return([]*models.User{
		{UUID: "u1", Username: "alice", Email: "a@example.com", Role: models.RoleMember, SubscriptionStatus: models.StatusTrial},
	}, nil).Once()

	accounts, err := newTestService(users, nil, nil).ListAccounts(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.Equal(t, "u1", accounts[0].UserUID)
	assert.Equal(t, models.StatusTrial, accounts[0].SubscriptionStatus)
}

func TestService_SuspendAccount(t *testing.T) {
	users := new(UserRepoMock)
	users.On("SetSuspended", mock.Anything, "u1", true, mock.MatchedBy(func(r *string) bool {
		return r != nil && *r == "chargeback"
	})).Return(nil).Once()
	users.On("SetSuspended", mock.Anything, "u2", true, (*string)(nil)).Return(nil).Once()
	users.On("SetSuspended", mock.Anything, "u3", true, mock.Anything).Return(storage.ErrNotFound).Once()
	svc := newTestService(users, nil, nil)
	ctx := context.Background()

	assert.NoError(t, svc.SuspendAccount(ctx, "a1", "u1", " chargeback "))
	assert.NoError(t, svc.SuspendAccount(ctx, "a1", "u2", "  "))
	assert.ErrorIs(t, svc.SuspendAccount(ctx, "a1", "u3", ""), storage.ErrNotFound)
	assert.ErrorIs(t, svc.SuspendAccount(ctx, "a1", "a1", ""), ErrSelfSuspend)
	users.AssertExpectations(t)
}

func TestService_UnsuspendAccount(t *testing.T) {
	users := new(UserRepoMock)
	users.On("SetSuspended", mock.Anything, "u1", false, (*string)(nil)).Return(nil).Once()
	users.On("SetSuspended", mock.Anything, "u2", false, (*string)(nil)).Return(errors.New("db down")).Once()
	svc := newTestService(users, nil, nil)

	assert.NoError(t, svc.UnsuspendAccount(context.Background(), "a1", "u1"))
	assert.Error(t, svc.UnsuspendAccount(context.Background(), "a1", "u2"))
}
