package middlewarectx_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stable-manager/internal/http/exempt"
	"github.com/magabrotheeeer/stable-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stable-manager/internal/models"
	"github.com/magabrotheeeer/stable-manager/internal/storage"
)

// Mock for TokenValidator
type AuthClientMock struct {
	mock.Mock
}

func (m *AuthClientMock) ValidateToken(ctx context.Context, token string) (models.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(models.Identity), args.Error(1)
}

type SnapshotReaderMock struct {
	mock.Mock
}

func (m *SnapshotReaderMock) GetAccountSnapshot(ctx context.Context, userUID string) (*models.AccountSnapshot, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccountSnapshot), args.Error(1)
}

func newExemptTable(t *testing.T) *exempt.Table {
	t.Helper()
	table, err := exempt.New(exempt.AllRoutes...)
	require.NoError(t, err)
	return table
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestAuthenticate(t *testing.T) {
	alice := models.Identity{UserUID: "u1", Username: "alice", Role: models.RoleMember}

	tests := []struct {
		name         string
		authHeader   string
		setupMocks   func(m *AuthClientMock)
		wantIdentity bool
	}{
		{name: "missing Authorization header", setupMocks: func(_ *AuthClientMock) {}},
		{name: "invalid Authorization header prefix", authHeader: "Basic sometoken", setupMocks: func(_ *AuthClientMock) {}},
		{name: "empty bearer", authHeader: "Bearer   ", setupMocks: func(_ *AuthClientMock) {}},
		{
			name:       "token validation error",
			authHeader: "Bearer token",
			setupMocks: func(m *AuthClientMock) {
				m.On("ValidateToken", mock.Anything, "token").Return(models.Identity{}, errors.New("unauthenticated")).Once()
			},
		},
		{
			name:       "valid token",
			authHeader: "Bearer validtoken",
			setupMocks: func(m *AuthClientMock) {
				m.On("ValidateToken", mock.Anything, "validtoken").Return(alice, nil).Once()
			},
			wantIdentity: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authMock := new(AuthClientMock)
			tt.setupMocks(authMock)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				identity, ok := middlewarectx.IdentityFrom(r.Context())
				assert.Equal(t, tt.wantIdentity, ok)
				if tt.wantIdentity {
					assert.Equal(t, alice, identity)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/somepath", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			middlewarectx.Authenticate(authMock, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.True(t, called, "identity layer never denies")
			assert.Equal(t, http.StatusOK, rec.Code)
			authMock.AssertExpectations(t)
		})
	}
}

func TestEntitlement(t *testing.T) {
	table := newExemptTable(t)
	reason := "fraud review"
	endsSoon := now.Add(5 * 24 * time.Hour)

	tests := []struct {
		name       string
		path       string
		identity   *models.Identity
		setupMocks func(m *SnapshotReaderMock)
		wantCalled bool
		wantStatus int
		wantCode   string
		wantError  string
		wantSnap   bool
	}{
		{
			name:       "exempt path skips evaluation",
			path:       "/rpc/profile.get",
			identity:   &models.Identity{UserUID: "u1"},
			setupMocks: func(_ *SnapshotReaderMock) {},
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "anonymous request is forwarded",
			path:       "/rpc/account.summary",
			setupMocks: func(_ *SnapshotReaderMock) {},
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:     "active account allowed with snapshot in context",
			path:     "/rpc/account.summary",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(&models.AccountSnapshot{
					UserUID: "u1", SubscriptionStatus: models.StatusActive,
				}, nil).Once()
			},
			wantCalled: true,
			wantStatus: http.StatusOK,
			wantSnap:   true,
		},
		{
			name:     "cancelled within grace allowed",
			path:     "/rpc/account.summary",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(&models.AccountSnapshot{
					UserUID: "u1", SubscriptionStatus: models.StatusCancelled, SubscriptionEndsAt: &endsSoon,
				}, nil).Once()
			},
			wantCalled: true,
			wantStatus: http.StatusOK,
			wantSnap:   true,
		},
		{
			name:     "expired trial denied with 402",
			path:     "/rpc/account.summary",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(&models.AccountSnapshot{
					UserUID: "u1", SubscriptionStatus: models.StatusTrial, CreatedAt: now.Add(-8 * 24 * time.Hour),
				}, nil).Once()
			},
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "TRIAL_EXPIRED",
			wantError:  "PAYMENT_REQUIRED",
		},
		{
			name:     "suspended account denied with 403",
			path:     "/api/v1/anything",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(&models.AccountSnapshot{
					UserUID: "u1", SubscriptionStatus: models.StatusActive, IsSuspended: true, SuspendedReason: &reason,
				}, nil).Once()
			},
			wantStatus: http.StatusForbidden,
			wantCode:   "ACCOUNT_SUSPENDED",
			wantError:  "FORBIDDEN",
		},
		{
			name:     "storage failure fails open",
			path:     "/rpc/account.summary",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(nil, errors.New("connection refused")).Once()
			},
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
		{
			name:     "missing account is forwarded",
			path:     "/rpc/account.summary",
			identity: &models.Identity{UserUID: "u1"},
			setupMocks: func(m *SnapshotReaderMock) {
				m.On("GetAccountSnapshot", mock.Anything, "u1").Return(nil, storage.ErrNotFound).Once()
			},
			wantCalled: true,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := new(SnapshotReaderMock)
			tt.setupMocks(reader)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				s, ok := middlewarectx.SnapshotFrom(r.Context(), "u1")
				assert.Equal(t, tt.wantSnap, ok)
				if ok {
					assert.Equal(t, now, s.EvaluatedAt)
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.identity != nil {
				req = req.WithContext(middlewarectx.WithIdentity(req.Context(), *tt.identity))
			}
			rec := httptest.NewRecorder()
			mw := middlewarectx.Entitlement(reader, table, newNoopLogger(), nil, func() time.Time { return now })
			mw(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantCode, body["code"])
				assert.Equal(t, tt.wantError, body["error"])
				assert.NotEmpty(t, body["message"])
			}
			reader.AssertExpectations(t)
		})
	}
}

func TestEntitlement_TrialBodyCarriesEndDate(t *testing.T) {
	reader := new(SnapshotReaderMock)
	created := now.Add(-8 * 24 * time.Hour)
	reader.On("GetAccountSnapshot", mock.Anything, "u1").Return(&models.AccountSnapshot{
		UserUID: "u1", SubscriptionStatus: models.StatusTrial, CreatedAt: created,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rpc/account.summary", nil)
	req = req.WithContext(middlewarectx.WithIdentity(req.Context(), models.Identity{UserUID: "u1"}))
	rec := httptest.NewRecorder()
	mw := middlewarectx.Entitlement(reader, newExemptTable(t), newNoopLogger(), nil,
		func() time.Time { return now })
	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, created.Add(7*24*time.Hour).Format(time.RFC3339), body["trialEndedAt"])
}

func TestSnapshotFrom_OtherUser(t *testing.T) {
	ctx := middlewarectx.WithSnapshot(context.Background(), middlewarectx.EvaluatedSnapshot{UserUID: "u1"})

	_, ok := middlewarectx.SnapshotFrom(ctx, "u2")
	assert.False(t, ok)
	_, ok = middlewarectx.SnapshotFrom(ctx, "u1")
	assert.True(t, ok)
}

func TestRateLimit(t *testing.T) {
	limiter := middlewarectx.NewLimiter(1, 2)
	handler := middlewarectx.RateLimit(limiter, newNoopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"), "limits are per client")
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "ip:192.0.2.1", middlewarectx.ClientKey(req))

	req = req.WithContext(middlewarectx.WithIdentity(req.Context(), models.Identity{UserUID: "u1"}))
	assert.Equal(t, "user:u1", middlewarectx.ClientKey(req))
}
