package reports

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/errs"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/internal/transactions"
)

type mockUsers struct{ mock.Mock }

func (m *mockUsers) CountByRole(ctx context.Context) (map[auth.Role]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[auth.Role]int64), args.Error(1)
}

type mockProperties struct{ mock.Mock }

func (m *mockProperties) Get(ctx context.Context, id string) (*properties.Property, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*properties.Property)
	return p, args.Error(1)
}

func (m *mockProperties) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) Get(ctx context.Context, id uint) (*transactions.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*transactions.Transaction)
	return t, args.Error(1)
}

func (m *mockTransactions) ListByRole(ctx context.Context, role auth.Role, identity string, statuses ...transactions.Status) ([]transactions.Transaction, error) {
	args := m.Called(ctx, role, identity, statuses)
	return args.Get(0).([]transactions.Transaction), args.Error(1)
}

func (m *mockTransactions) CountByStatus(ctx context.Context) (map[transactions.Status]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[transactions.Status]int64), args.Error(1)
}

func strPtr(s string) *string { return &s }

func completedTx() *transactions.Transaction {
	return &transactions.Transaction{
		ID:               7,
		PropertyID:       "PROP-1",
		BuyerEmail:       "buyer@example.com",
		SellerEmail:      "seller@example.com",
		Status:           transactions.StatusCompleted,
		OfferPrice:       strPtr("1.5"),
		BlockchainTxHash: strPtr("0xabc"),
		UpdatedAt:        time.Now(),
	}
}

func TestStatsAreCached(t *testing.T) {
	users, props, txs := new(mockUsers), new(mockProperties), new(mockTransactions)
	users.On("CountByRole", mock.Anything).Return(map[auth.Role]int64{auth.RoleBuyer: 3, auth.RoleSeller: 2}, nil).Once()
	props.On("Count", mock.Anything).Return(int64(4), nil).Once()
	txs.On("CountByStatus", mock.Anything).Return(map[transactions.Status]int64{
		transactions.StatusCompleted: 2,
		transactions.StatusRequested: 1,
	}, nil).Once()

	svc := NewService(users, props, txs, time.Minute, zap.NewNop())

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.TotalUsers)
	assert.Equal(t, int64(3), st.UsersByRole["Buyer"])
	assert.Equal(t, int64(4), st.TotalProperties)
	assert.Equal(t, int64(2), st.CompletedTransactions)

	again, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Same(t, st, again)

	users.AssertExpectations(t)
	props.AssertExpectations(t)
	txs.AssertExpectations(t)
}

func TestExportTransactions(t *testing.T) {
	txs := new(mockTransactions)
	txs.On("ListByRole", mock.Anything, auth.RoleAdmin, "", []transactions.Status{transactions.StatusCompleted}).
		Return([]transactions.Transaction{*completedTx()}, nil)

	svc := NewService(new(mockUsers), new(mockProperties), txs, 0, zap.NewNop())

	var buf bytes.Buffer
	n, err := svc.ExportTransactions(context.Background(), &buf, FormatXLSX, transactions.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "PROP-1", rows[1][1])
	assert.Equal(t, "0xabc", rows[1][7])

	_, err = svc.ExportTransactions(context.Background(), &buf, Format("pdf"), transactions.StatusCompleted)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCertificate(t *testing.T) {
	props, txs := new(mockProperties), new(mockTransactions)
	props.On("Get", mock.Anything, "PROP-1").Return(&properties.Property{PropertyID: "PROP-1", Location: "Ward 4", LandArea: 500}, nil)

	pending := completedTx()
	pending.ID = 8
	pending.Status = transactions.StatusGovernmentApproved
	txs.On("Get", mock.Anything, uint(7)).Return(completedTx(), nil)
	txs.On("Get", mock.Anything, uint(8)).Return(pending, nil)

	svc := NewService(new(mockUsers), props, txs, 0, zap.NewNop())
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, svc.Certificate(ctx, auth.Actor{Role: auth.RoleBuyer, Email: "buyer@example.com"}, 7, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	err := svc.Certificate(ctx, auth.Actor{Role: auth.RoleBuyer, Email: "other@example.com"}, 7, &buf)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	err = svc.Certificate(ctx, auth.Actor{Role: auth.RoleGovernment, Email: "gov@example.com"}, 8, &buf)
	assert.ErrorIs(t, err, errs.ErrInvalidStateTransition)
}

func TestStatsRouteRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users, props, txs := new(mockUsers), new(mockProperties), new(mockTransactions)
	users.On("CountByRole", mock.Anything).Return(map[auth.Role]int64{}, nil)
	props.On("Count", mock.Anything).Return(int64(0), nil)
	txs.On("CountByStatus", mock.Anything).Return(map[transactions.Status]int64{}, nil)

	tokens := auth.NewTokenIssuer("secret", time.Hour)
	r := gin.New()
	NewHandler(NewService(users, props, txs, 0, zap.NewNop()), zap.NewNop()).
		RegisterRoutes(r.Group("/api", auth.RequireActor(tokens)))

	call := func(actor auth.Actor) int {
		token, _, err := tokens.Issue(actor)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call(auth.Actor{Role: auth.RoleAdmin, Email: "admin@example.com"}))
	assert.Equal(t, http.StatusForbidden, call(auth.Actor{Role: auth.RoleBuyer, Email: "buyer@example.com"}))
}
