package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/grokshare/config"
	"github.com/cppla/grokshare/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestClientIdentityMintsAndEchoes(t *testing.T) {
	r := gin.New()
	r.Use(ClientIdentity(func() string { return "minted-1" }))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, ClientID(c)) })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, "minted-1", w.Body.String())
	assert.Equal(t, "minted-1", w.Header().Get(ClientIDHeader))

	w = perform(r, http.MethodGet, "/", map[string]string{ClientIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(ClientIDHeader))
}

func TestClientIdentityRejectsMalformedHeader(t *testing.T) {
	r := gin.New()
	r.Use(ClientIdentity(func() string { return "fresh" }))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, ClientID(c)) })

	for _, bad := range []string{"has space", "<script>", string(make([]byte, 65))} {
		w := perform(r, http.MethodGet, "/", map[string]string{ClientIDHeader: bad})
		assert.Equal(t, "fresh", w.Body.String(), "header %q", bad)
	}
}

func TestClientIdentityDefaultProvider(t *testing.T) {
	r := gin.New()
	r.Use(ClientIdentity(nil))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, ClientID(c)) })

	w := perform(r, http.MethodGet, "/", nil)
	assert.Len(t, w.Body.String(), 36)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(4)) // burst of 2
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hdr := map[string]string{"X-Real-IP": "203.0.113.9"}
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", hdr).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", hdr).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/", hdr).Code)

	other := map[string]string{"X-Real-IP": "203.0.113.10"}
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", other).Code)
}

func TestClientIPPrefersPublicProxyHeaders(t *testing.T) {
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, ClientIP(c)) })

	w := perform(r, http.MethodGet, "/", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"})
	assert.Equal(t, "198.51.100.7", w.Body.String())

	// private addresses in headers are ignored
	w = perform(r, http.MethodGet, "/", map[string]string{"X-Real-IP": "10.0.0.8"})
	assert.Equal(t, "192.0.2.1", w.Body.String())
}

func TestAdminSession(t *testing.T) {
	mr := miniredis.RunT(t)
	utils.SetRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	config.Set(config.AppConfig{JWTSecret: "middleware-secret"})

	r := gin.New()
	r.Use(AdminSession())
	r.GET("/whoami", func(c *gin.Context) {
		if IsAdmin(c) {
			c.String(http.StatusOK, "admin")
			return
		}
		c.String(http.StatusOK, "visitor")
	})
	r.GET("/admin", AdminRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, exp, err := utils.GenerateAdminToken(time.Hour)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	assert.Equal(t, "visitor", perform(r, http.MethodGet, "/whoami", nil).Body.String())
	assert.Equal(t, "visitor", perform(r, http.MethodGet, "/whoami", map[string]string{"Authorization": "Bearer junk"}).Body.String())
	assert.Equal(t, "admin", perform(r, http.MethodGet, "/whoami", auth).Body.String())

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/admin", nil).Code)
	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodGet, "/admin", auth).Code)

	claims, err := utils.ParseAdminToken(token)
	require.NoError(t, err)
	utils.BlacklistToken(claims.ID, exp)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/admin", auth).Code)
}
