package reminder

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

	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
	"github.com/magabrotheeeer/stable-manager/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/stable-manager/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindTrialReminderCandidates(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockRepository) MarkTrialReminderSent(ctx context.Context, userUID string, at time.Time) (bool, error) {
	args := m.Called(ctx, userUID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ClearTrialReminder(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	args := m.Called(ctx, routingKey, message)
	return args.Error(0)
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestScheduler(repo *MockRepository, pub *MockPublisher) *Scheduler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(repo, pub, log, nil, time.Hour, 24*time.Hour, func() time.Time { return now })
}

func TestRunOnce_Window(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)

	wantFrom := now.Add(-entitlement.TrialPeriod)
	wantTo := now.Add(24*time.Hour - entitlement.TrialPeriod)
	repo.On("FindTrialReminderCandidates", mock.Anything, wantFrom, wantTo).Return([]*models.User{}, nil).Once()

	sent, err := newTestScheduler(repo, pub).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	repo.AssertExpectations(t)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunOnce(t *testing.T) {
	created := now.Add(-6*24*time.Hour - time.Hour)
	user := &models.User{UUID: "u1", Email: "u1@example.com", Username: "u1", CreatedAt: created}

	tests := []struct {
		name       string
		setupMocks func(r *MockRepository, p *MockPublisher)
		wantSent   int
		wantErr    bool
	}{
		{
			name: "claims and publishes",
			setupMocks: func(r *MockRepository, p *MockPublisher) {
				r.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).
					Return([]*models.User{user}, nil).Once()
				r.On("MarkTrialReminderSent", mock.Anything, "u1", now).Return(true, nil).Once()
				p.On("Publish", mock.Anything, rabbitmq.TrialEndingRoutingKey, models.TrialReminder{
					UserUID:    "u1",
					Email:      "u1@example.com",
					Username:   "u1",
					TrialEndAt: created.Add(entitlement.TrialPeriod),
				}).Return(nil).Once()
			},
			wantSent: 1,
		},
		{
			name: "already claimed is skipped",
			setupMocks: func(r *MockRepository, _ *MockPublisher) {
				r.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).
					Return([]*models.User{user}, nil).Once()
				r.On("MarkTrialReminderSent", mock.Anything, "u1", now).Return(false, nil).Once()
			},
			wantSent: 0,
		},
		{
			name: "publish failure releases claim",
			setupMocks: func(r *MockRepository, p *MockPublisher) {
				r.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).
					Return([]*models.User{user}, nil).Once()
				r.On("MarkTrialReminderSent", mock.Anything, "u1", now).Return(true, nil).Once()
				p.On("Publish", mock.Anything, rabbitmq.TrialEndingRoutingKey, mock.Anything).
					Return(errors.New("broker down")).Once()
				r.On("ClearTrialReminder", mock.Anything, "u1").Return(nil).Once()
			},
			wantSent: 0,
		},
		{
			name: "claim error does not stop the pass",
			setupMocks: func(r *MockRepository, p *MockPublisher) {
				second := &models.User{UUID: "u2", CreatedAt: created}
				r.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).
					Return([]*models.User{user, second}, nil).Once()
				r.On("MarkTrialReminderSent", mock.Anything, "u1", now).Return(false, errors.New("db")).Once()
				r.On("MarkTrialReminderSent", mock.Anything, "u2", now).Return(true, nil).Once()
				p.On("Publish", mock.Anything, rabbitmq.TrialEndingRoutingKey, mock.Anything).Return(nil).Once()
			},
			wantSent: 1,
		},
		{
			name: "find error",
			setupMocks: func(r *MockRepository, _ *MockPublisher) {
				r.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			pub := new(MockPublisher)
			tt.setupMocks(repo, pub)

			sent, err := newTestScheduler(repo, pub).RunOnce(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSent, sent)
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	repo.On("FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything).Return([]*models.User{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(repo, pub, slog.New(slog.NewTextHandler(io.Discard, nil)), nil,
		10*time.Millisecond, time.Hour, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	repo.AssertCalled(t, "FindTrialReminderCandidates", mock.Anything, mock.Anything, mock.Anything)
}
