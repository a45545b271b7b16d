package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/stable-manager/internal/models"
)

func TestStorage_Users(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	uid := mustRegister(t, s, newTestUser("alice", created))

	t.Run("duplicate username", func(t *testing.T) {
		u := newTestUser("alice", created)
		u.Email = "other@example.com"
		_, err := s.RegisterUser(ctx, u)
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("get by username", func(t *testing.T) {
		u, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uid, u.UUID)
		assert.Equal(t, models.RoleMember, u.Role)
		assert.Equal(t, models.StatusTrial, u.SubscriptionStatus)
		assert.True(t, created.Equal(u.CreatedAt))
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed uid is not found", func(t *testing.T) {
		_, err := s.GetAccountSnapshot(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list users", func(t *testing.T) {
		mustRegister(t, s, newTestUser("bob", created.Add(time.Hour)))
		users, err := s.ListUsers(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Username)

		users, err = s.ListUsers(ctx, 10, 1)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "bob", users[0].Username)
	})
}

func TestStorage_AccountSnapshot(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	uid := mustRegister(t, s, newTestUser("carol", created))

	snap, err := s.GetAccountSnapshot(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, uid, snap.UserUID)
	assert.Equal(t, models.StatusTrial, snap.SubscriptionStatus)
	assert.Nil(t, snap.SubscriptionEndsAt)
	assert.False(t, snap.IsSuspended)
	assert.Nil(t, snap.SuspendedReason)

	t.Run("suspend and unsuspend", func(t *testing.T) {
		reason := "chargeback"
		require.NoError(t, s.SetSuspended(ctx, uid, true, &reason))

		snap, err := s.GetAccountSnapshot(ctx, uid)
		require.NoError(t, err)
		assert.True(t, snap.IsSuspended)
		require.NotNil(t, snap.SuspendedReason)
		assert.Equal(t, "chargeback", *snap.SuspendedReason)

		require.NoError(t, s.SetSuspended(ctx, uid, false, &reason))
		snap, err = s.GetAccountSnapshot(ctx, uid)
		require.NoError(t, err)
		assert.False(t, snap.IsSuspended)
		assert.Nil(t, snap.SuspendedReason, "reason is cleared on unsuspend")
	})

	t.Run("subscription transitions", func(t *testing.T) {
		end := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.ApplySubscriptionTransition(ctx, uid, models.StatusCancelled, &end))

		snap, err := s.GetAccountSnapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, snap.SubscriptionStatus)
		require.NotNil(t, snap.SubscriptionEndsAt)
		assert.True(t, end.Equal(*snap.SubscriptionEndsAt))

		require.NoError(t, s.ApplySubscriptionTransition(ctx, uid, models.StatusActive, nil))
		snap, err = s.GetAccountSnapshot(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, snap.SubscriptionStatus)
		assert.Nil(t, snap.SubscriptionEndsAt)
	})

	t.Run("unknown user", func(t *testing.T) {
		err := s.ApplySubscriptionTransition(ctx, uuid.NewString(), models.StatusActive, nil)
		assert.ErrorIs(t, err, ErrNotFound)
		err = s.SetSuspended(ctx, uuid.NewString(), true, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStorage_AdminSessions(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	uid := mustRegister(t, s, newTestUser("dave", time.Now().UTC()))

	_, err := s.GetAdminSession(ctx, uid)
	assert.ErrorIs(t, err, ErrNotFound)

	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := models.AdminSession{
		ID:        uuid.NewString(),
		UserUID:   uid,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(15 * time.Minute),
	}
	require.NoError(t, s.UpsertAdminSession(ctx, first))

	got, err := s.GetAdminSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, first.ExpiresAt.Equal(got.ExpiresAt))

	second := first
	second.ID = uuid.NewString()
	second.IssuedAt = issued.Add(time.Hour)
	second.ExpiresAt = second.IssuedAt.Add(15 * time.Minute)
	require.NoError(t, s.UpsertAdminSession(ctx, second))

	got, err = s.GetAdminSession(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "new session replaces the previous one")
	assert.True(t, second.ExpiresAt.Equal(got.ExpiresAt))
}

func TestStorage_TrialReminders(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	dueSoon := mustRegister(t, s, newTestUser("due", now.Add(-6*24*time.Hour-time.Hour)))
	mustRegister(t, s, newTestUser("fresh", now.Add(-time.Hour)))
	paid := mustRegister(t, s, newTestUser("paid", now.Add(-6*24*time.Hour-2*time.Hour)))
	require.NoError(t, s.ApplySubscriptionTransition(ctx, paid, models.StatusActive, nil))

	from := now.Add(-7 * 24 * time.Hour)
	to := now.Add(24*time.Hour - 7*24*time.Hour)

	candidates, err := s.FindTrialReminderCandidates(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, dueSoon, candidates[0].UUID)

	claimed, err := s.MarkTrialReminderSent(ctx, dueSoon, now)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.MarkTrialReminderSent(ctx, dueSoon, now)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	candidates, err = s.FindTrialReminderCandidates(ctx, from, to)
	require.NoError(t, err)
	assert.Empty(t, candidates)

	require.NoError(t, s.ClearTrialReminder(ctx, dueSoon))
	candidates, err = s.FindTrialReminderCandidates(ctx, from, to)
	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}
