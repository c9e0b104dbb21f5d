package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/auth"
	"storefront-service/internal/metrics"
	"storefront-service/pkg/ctxmanage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testKeys(t *testing.T) *auth.Keys {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(&pk.PublicKey)
	require.NoError(t, err)

	k, err := auth.NewKeys(
		pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(pk)}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		time.Hour)
	require.NoError(t, err)
	return k
}

func newRouter(t *testing.T, k *auth.Keys) *gin.Engine {
	t.Helper()
	m, err := NewMid(k)
	require.NoError(t, err)

	r := gin.New()
	r.Use(Logger())
	r.GET("/trace", func(c *gin.Context) {
		c.String(http.StatusOK, ctxmanage.GetTraceIdOfRequest(c))
	})
	g := r.Group("/", m.Authentication())
	g.GET("/user", m.Authorize(func(c *gin.Context) {
		claims := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
		c.String(http.StatusOK, claims.Subject)
	}, auth.RoleUser))
	g.GET("/admin", m.Authorize(func(c *gin.Context) { c.Status(http.StatusNoContent) }, auth.RoleAdmin))
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNewMid_NilKeys(t *testing.T) {
	_, err := NewMid(nil)
	assert.Error(t, err)
}

func TestLogger_SetsTraceID(t *testing.T) {
	r := newRouter(t, testKeys(t))
	rec := do(r, "/trace", "")

	require.Equal(t, http.StatusOK, rec.Code)
	traceId := rec.Header().Get(TraceHeader)
	assert.NotEmpty(t, traceId)
	assert.Equal(t, traceId, rec.Body.String())
}

func TestAuthenticationAndAuthorize(t *testing.T) {
	k := testKeys(t)
	r := newRouter(t, k)

	userToken, err := k.GenerateToken("u-1", []string{auth.RoleUser})
	require.NoError(t, err)
	adminToken, err := k.GenerateToken("a-1", []string{auth.RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/user", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/user", "garbage").Code)

	rec := do(r, "/user", userToken)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", userToken).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", adminToken).Code)
	assert.Equal(t, http.StatusOK, do(r, "/user", adminToken).Code)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewServerMetrics("mw", nil)
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/ping", "")
	do(r, "/ping", "")
	do(r, "/nowhere", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("unmatched", "404")))
}
