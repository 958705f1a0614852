package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/notifications"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenMemory(&UserSettings{})
	require.NoError(t, err)
	return NewService(NewRepository(db), zap.NewNop())
}

func TestGetReturnsDefaults(t *testing.T) {
	svc := newTestService(t)

	st, err := svc.Get(context.Background(), "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, st.EmailNotifications)
	assert.True(t, st.PushNotifications)
	assert.False(t, st.TwoFactorAuth)

	_, err = svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestUpdateIsPartialAndUpserts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	off, on := false, true

	_, err := svc.Save(ctx, "buyer@example.com", UpdateRequest{EmailNotifications: &off})
	require.NoError(t, err)

	st, err := svc.Save(ctx, "buyer@example.com", UpdateRequest{TwoFactorAuth: &on})
	require.NoError(t, err)
	assert.False(t, st.EmailNotifications)
	assert.True(t, st.TwoFactorAuth)

	stored, err := svc.Get(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.False(t, stored.EmailNotifications)
	assert.True(t, stored.PushNotifications)
	assert.True(t, stored.TwoFactorAuth)
}

func TestChannelEnabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	off := false

	_, err := svc.Save(ctx, "seller@example.com", UpdateRequest{PushNotifications: &off})
	require.NoError(t, err)

	push, err := svc.ChannelEnabled(ctx, "seller@example.com", notifications.ChannelPush)
	require.NoError(t, err)
	assert.False(t, push)

	email, err := svc.ChannelEnabled(ctx, "seller@example.com", notifications.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, email)
}
