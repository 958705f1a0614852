package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
)

func newRouter(t *testing.T, f *fixture) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	r := gin.New()
	NewHandler(f.service, zap.NewNop()).RegisterRoutes(r.Group("/api", auth.RequireActor(tokens)))
	return r, tokens
}

func call(t *testing.T, r *gin.Engine, tokens *auth.TokenIssuer, actor auth.Actor, method, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if v != nil {
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}
	token, _, err := tokens.Issue(actor)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidateAddressRoute(t *testing.T) {
	f := newFixture(t)
	r, tokens := newRouter(t, f)

	cases := []struct {
		addr string
		want bool
	}{
		{ownerWallet, true},
		{"0x1234", false},
		{"8ba1f109551bD432803012645Ac136ddd64DBA72", false},
	}
	for _, tc := range cases {
		w := call(t, r, tokens, buyer, http.MethodPost, "/api/blockchain/validate-address", gin.H{"address": tc.addr})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp struct {
			IsValid bool `json:"is_valid"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tc.want, resp.IsValid, tc.addr)
	}

	w := call(t, r, tokens, buyer, http.MethodPost, "/api/blockchain/validate-address", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChainRoutes(t *testing.T) {
	f := newFixture(t)
	r, tokens := newRouter(t, f)
	f.registry.On("GetProperty", uint64(7)).Return(&blockchain.ChainProperty{ChainPropertyID: 7, PropertyID: "PLOT-9", IsApproved: true}, nil)
	f.registry.On("GetProperty", uint64(8)).Return(nil, blockchain.ErrPropertyNotFound)
	f.registry.On("VerifyOwnership", uint64(7), ownerWallet).Return(true, nil)
	f.registry.On("Stats").Return(nil, blockchain.ErrNotConfigured)

	w := call(t, r, tokens, buyer, http.MethodGet, "/api/blockchain/property/7", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p blockchain.ChainProperty
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "PLOT-9", p.PropertyID)

	w = call(t, r, tokens, buyer, http.MethodGet, "/api/blockchain/property/8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, r, tokens, buyer, http.MethodGet, "/api/blockchain/property/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, r, tokens, buyer, http.MethodPost, "/api/blockchain/verify-ownership", gin.H{
		"blockchain_property_id": 7,
		"owner_wallet_address":   ownerWallet,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"is_owner":true`)

	w = call(t, r, tokens, buyer, http.MethodGet, "/api/blockchain/stats", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRegisterPropertyRouteIsForOfficials(t *testing.T) {
	f := newFixture(t)
	r, tokens := newRouter(t, f)

	body := RegisterRequest{PropertyID: "PLOT-9", OwnerWalletAddress: ownerWallet}
	w := call(t, r, tokens, seller, http.MethodPost, "/api/blockchain/register-property", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, tokens, buyer, http.MethodPost, "/api/blockchain/approve-property", gin.H{"property_id": "PLOT-9"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, r, tokens, gov, http.MethodPost, "/api/blockchain/register-property", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	f.registry.AssertNotCalled(t, "RegisterProperty", mock.Anything)
}
