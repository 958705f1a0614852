package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/errs"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenMemory(&User{})
	require.NoError(t, err)
	return NewService(NewRepository(db), NewTokenIssuer("test-secret", time.Hour), zap.NewNop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{
		FullName: "Asha Rao",
		Email:    "Asha@Example.com",
		Password: "secret1",
		Role:     "seller",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, RoleSeller, user.Role)
	assert.Equal(t, UserPending, user.Status)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	resp, err := svc.Login(ctx, LoginRequest{Email: "asha@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	actor, err := svc.tokens.Parse(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, Actor{Role: RoleSeller, Email: "asha@example.com"}, actor)
}

func TestRegisterRejectsDuplicatesAndBadRoles(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	req := RegisterRequest{FullName: "B", Email: "b@example.com", Password: "secret1", Role: "Buyer"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, errs.ErrConflict)

	req.Email = "c@example.com"
	req.Role = "Notary"
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestLoginFailures(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterRequest{FullName: "G", Email: "g@example.com", Password: "secret1", Role: "Government"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "g@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = svc.UpdateStatus(ctx, user.ID, UserSuspended)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "g@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestUpdateStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, 42, UserVerified)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.UpdateStatus(ctx, 1, UserStatus("banned"))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCountByRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, r := range []RegisterRequest{
		{FullName: "a", Email: "a@x.io", Password: "secret1", Role: "Buyer"},
		{FullName: "b", Email: "b@x.io", Password: "secret1", Role: "Buyer"},
		{FullName: "c", Email: "c@x.io", Password: "secret1", Role: "Seller"},
	} {
		_, err := svc.Register(ctx, r)
		require.NoError(t, err)
	}

	counts, err := svc.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[RoleBuyer])
	assert.Equal(t, int64(1), counts[RoleSeller])
	assert.Zero(t, counts[RoleGovernment])
}
