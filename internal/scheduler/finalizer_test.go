package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/transactions"
)

type mockFinalizer struct {
	mock.Mock
}

func (m *mockFinalizer) PendingFinalization(ctx context.Context, limit int) ([]transactions.Transaction, error) {
	args := m.Called(ctx, limit)
	list, _ := args.Get(0).([]transactions.Transaction)
	return list, args.Error(1)
}

func (m *mockFinalizer) FinalizeOnChain(ctx context.Context, id uint, actor auth.Actor, req transactions.FinalizeRequest) (*transactions.FinalizeResult, error) {
	args := m.Called(ctx, id, actor)
	res, _ := args.Get(0).(*transactions.FinalizeResult)
	return res, args.Error(1)
}

func TestSweepFinalizesBatch(t *testing.T) {
	f := new(mockFinalizer)
	f.On("PendingFinalization", mock.Anything, 10).Return([]transactions.Transaction{{ID: 1}, {ID: 2}, {ID: 3}}, nil)
	f.On("FinalizeOnChain", mock.Anything, uint(1), auth.System).Return(&transactions.FinalizeResult{}, nil)
	f.On("FinalizeOnChain", mock.Anything, uint(2), auth.System).
		Return(nil, errs.E(errs.KindExternalService, "test", "rpc unavailable"))
	f.On("FinalizeOnChain", mock.Anything, uint(3), auth.System).Return(&transactions.FinalizeResult{AlreadyFinalized: true}, nil)

	s := NewFinalizeSweeper(f, zap.NewNop(), Config{Schedule: "@every 1h", BatchSize: 10, MaxConcurrent: 2})
	res := s.Sweep(context.Background())

	assert.Equal(t, SweepResult{Attempted: 3, Finalized: 1, Failed: 1}, res)
	f.AssertExpectations(t)
}

func TestSweepListFailure(t *testing.T) {
	f := new(mockFinalizer)
	f.On("PendingFinalization", mock.Anything, 20).Return(nil, errors.New("db down"))

	s := NewFinalizeSweeper(f, zap.NewNop(), DefaultConfig())
	assert.Equal(t, SweepResult{}, s.Sweep(context.Background()))
	f.AssertNotCalled(t, "FinalizeOnChain", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewFinalizeSweeper(new(mockFinalizer), zap.NewNop(), Config{Schedule: "not a schedule"})
	assert.Error(t, s.Start(context.Background()))

	ok := NewFinalizeSweeper(new(mockFinalizer), zap.NewNop(), DefaultConfig())
	require.NoError(t, ok.Start(context.Background()))
	assert.Error(t, ok.Start(context.Background()))
	ok.Stop()
}
