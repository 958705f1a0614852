package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/pkg/storage"
)

const ownerWallet = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

var (
	seller = auth.Actor{Role: auth.RoleSeller, Email: "seller@example.com"}
	gov    = auth.Actor{Role: auth.RoleGovernment, Email: "gov@example.com"}
	buyer  = auth.Actor{Role: auth.RoleBuyer, Email: "buyer@example.com"}
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) RegisterProperty(ctx context.Context, rec blockchain.PropertyRecord) (*blockchain.RegistryResult, error) {
	args := m.Called(rec)
	res, _ := args.Get(0).(*blockchain.RegistryResult)
	return res, args.Error(1)
}

func (m *mockRegistry) ApproveProperty(ctx context.Context, id uint64) (*blockchain.RegistryResult, error) {
	args := m.Called(id)
	res, _ := args.Get(0).(*blockchain.RegistryResult)
	return res, args.Error(1)
}

func (m *mockRegistry) GetProperty(ctx context.Context, id uint64) (*blockchain.ChainProperty, error) {
	args := m.Called(id)
	p, _ := args.Get(0).(*blockchain.ChainProperty)
	return p, args.Error(1)
}

func (m *mockRegistry) VerifyOwnership(ctx context.Context, id uint64, owner string) (bool, error) {
	args := m.Called(id, owner)
	return args.Bool(0), args.Error(1)
}

func (m *mockRegistry) Stats(ctx context.Context) (*blockchain.NetworkStats, error) {
	args := m.Called()
	s, _ := args.Get(0).(*blockchain.NetworkStats)
	return s, args.Error(1)
}

type fixture struct {
	registry *mockRegistry
	props    *properties.Service
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenMemory(&properties.Property{})
	require.NoError(t, err)

	files := storage.NewLocalStore(t.TempDir())
	f := &fixture{
		registry: new(mockRegistry),
		props:    properties.NewService(properties.NewRepository(db), files, zap.NewNop()),
	}
	f.service = NewService(f.registry, f.props, files, time.Second, zap.NewNop())
	return f
}

// approvedProperty registers PLOT-9 with a deed and approves it.
func (f *fixture) approvedProperty(t *testing.T, deed string) {
	t.Helper()
	ctx := context.Background()
	var doc *storage.Upload
	if deed != "" {
		doc = &storage.Upload{Filename: "deed.pdf", Content: strings.NewReader(deed)}
	}
	_, err := f.props.Register(ctx, seller, properties.RegisterRequest{
		PropertyID:       "PLOT-9",
		OwnerName:        "Asha Rao",
		Location:         "Plot 9, Ward 2",
		LandArea:         119.4,
		PropertyType:     "Residential",
		LegalDescription: "North of the canal",
	}, doc)
	require.NoError(t, err)
	_, err = f.props.Approve(ctx, gov, "PLOT-9")
	require.NoError(t, err)
}

func TestRegisterPropertyLinksChainID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedProperty(t, "%PDF-1.4 deed")

	sum := sha256.Sum256([]byte("%PDF-1.4 deed"))
	wantHash := hex.EncodeToString(sum[:])
	f.registry.On("RegisterProperty", blockchain.PropertyRecord{
		PropertyID:       "PLOT-9",
		OwnerAddress:     ownerWallet,
		Location:         "Plot 9, Ward 2",
		LandArea:         120,
		PropertyType:     "Residential",
		LegalDescription: "North of the canal",
		DocumentHash:     wantHash,
	}).Return(&blockchain.RegistryResult{Success: true, ChainPropertyID: 7, TxHash: "0xreg"}, nil).Once()

	out, err := f.service.RegisterProperty(ctx, gov, RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), out.Chain.ChainPropertyID)
	require.NotNil(t, out.Property.ChainPropertyID)
	assert.Equal(t, uint64(7), *out.Property.ChainPropertyID)
	assert.Equal(t, "0xreg", *out.Property.ChainTxHash)
	assert.Equal(t, wantHash, *out.Property.DocumentHash)

	_, err = f.service.RegisterProperty(ctx, gov, RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet})
	assert.ErrorIs(t, err, errs.ErrConflict)
	f.registry.AssertExpectations(t)
}

func TestRegisterPropertyRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterProperty(ctx, seller, RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.service.RegisterProperty(ctx, gov, RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: "0x123"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = f.service.RegisterProperty(ctx, gov, RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.props.Register(ctx, seller, properties.RegisterRequest{
		PropertyID: "PLOT-10", OwnerName: "Asha Rao", Location: "Ward 3", LandArea: 50, PropertyType: "Farm",
	}, nil)
	require.NoError(t, err)
	_, err = f.service.RegisterProperty(ctx, gov, RegisterRequest{PropertyID: "PLOT-10", OwnerWalletAddress: ownerWallet})
	assert.ErrorIs(t, err, errs.ErrConflict)

	f.registry.AssertNotCalled(t, "RegisterProperty", mock.Anything)
}

func TestRegisterPropertyChainFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedProperty(t, "")

	f.registry.On("RegisterProperty", mock.MatchedBy(func(rec blockchain.PropertyRecord) bool {
		return rec.DocumentHash == ""
	})).Return(&blockchain.RegistryResult{Success: false, Error: "transaction reverted"}, nil).Once()
	f.registry.On("RegisterProperty", mock.Anything).Return(nil, blockchain.ErrNotConfigured).Once()

	req := RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet}
	_, err := f.service.RegisterProperty(ctx, gov, req)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Contains(t, err.Error(), "transaction reverted")

	_, err = f.service.RegisterProperty(ctx, gov, req)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.Contains(t, err.Error(), "not configured")

	p, err := f.props.Get(ctx, "PLOT-9")
	require.NoError(t, err)
	assert.Nil(t, p.ChainPropertyID)
}

func TestApprovePropertyNeedsChainRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedProperty(t, "")

	_, err := f.service.ApproveProperty(ctx, gov, "PLOT-9")
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = f.props.RecordChainRegistration(ctx, "PLOT-9", 7, "0xreg", "")
	require.NoError(t, err)
	f.registry.On("ApproveProperty", uint64(7)).
		Return(&blockchain.RegistryResult{Success: true, ChainPropertyID: 7, TxHash: "0xapprove"}, nil).Once()

	res, err := f.service.ApproveProperty(ctx, gov, "PLOT-9")
	require.NoError(t, err)
	assert.Equal(t, "0xapprove", res.TxHash)

	_, err = f.service.ApproveProperty(ctx, buyer, "PLOT-9")
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestPropertyLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.On("GetProperty", uint64(7)).Return(&blockchain.ChainProperty{ChainPropertyID: 7, PropertyID: "PLOT-9"}, nil)
	f.registry.On("GetProperty", uint64(8)).Return(nil, blockchain.ErrPropertyNotFound)
	f.registry.On("GetProperty", uint64(9)).Return(nil, context.DeadlineExceeded)

	p, err := f.service.Property(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "PLOT-9", p.PropertyID)

	_, err = f.service.Property(ctx, 8)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.service.Property(ctx, 9)
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.True(t, errs.Retryable(err))
	assert.Contains(t, err.Error(), "timed out")

	_, err = f.service.Property(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestVerifyOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.On("VerifyOwnership", uint64(7), ownerWallet).Return(true, nil)
	f.registry.On("VerifyOwnership", uint64(8), ownerWallet).Return(false, errors.New("execution reverted"))

	ok, err := f.service.VerifyOwnership(ctx, 7, ownerWallet)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.service.VerifyOwnership(ctx, 8, ownerWallet)
	assert.ErrorIs(t, err, errs.ErrExternalService)

	_, err = f.service.VerifyOwnership(ctx, 7, "wallet")
	assert.ErrorIs(t, err, errs.ErrValidation)
	f.registry.AssertNumberOfCalls(t, "VerifyOwnership", 2)
}

func TestStatsUnconfigured(t *testing.T) {
	db, err := database.OpenMemory(&properties.Property{})
	require.NoError(t, err)
	svc := NewService(blockchain.Unconfigured{},
		properties.NewService(properties.NewRepository(db), storage.NewLocalStore(t.TempDir()), zap.NewNop()),
		storage.NewLocalStore(t.TempDir()), time.Second, zap.NewNop())

	_, err = svc.Stats(context.Background())
	assert.ErrorIs(t, err, errs.ErrExternalService)
	assert.ErrorIs(t, err, blockchain.ErrNotConfigured)
}
