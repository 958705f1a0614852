package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(tokens *TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", RequireActor(tokens), func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, actor)
	})
	r.GET("/gov-only", RequireActor(tokens), RequireRole(RoleGovernment), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireActor(t *testing.T) {
	tokens := NewTokenIssuer("secret", time.Hour)
	router := newTestRouter(tokens)

	token, _, err := tokens.Issue(Actor{Role: RoleBuyer, Email: "buyer@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"Buyer","email":"buyer@example.com"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireActorRejectsForeignSignature(t *testing.T) {
	router := newTestRouter(NewTokenIssuer("secret", time.Hour))

	forged, _, err := NewTokenIssuer("other", time.Hour).Issue(Actor{Role: RoleAdmin, Email: "x@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	tokens := NewTokenIssuer("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := tokens.Issue(Actor{Role: RoleBuyer, Email: "b@example.com"})
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Parse(token)
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	tokens := NewTokenIssuer("secret", time.Hour)
	router := newTestRouter(tokens)

	buyer, _, _ := tokens.Issue(Actor{Role: RoleBuyer, Email: "b@example.com"})
	gov, _, _ := tokens.Issue(Actor{Role: RoleGovernment, Email: "g@example.com"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gov-only?token="+buyer, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/gov-only", nil)
	req.Header.Set("Authorization", "Bearer "+gov)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
