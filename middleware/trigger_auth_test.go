package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/refresh", TriggerAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doRequest(r *gin.Engine, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerAuth_UnconfiguredSecret(t *testing.T) {
	r := newAuthRouter("")

	w := doRequest(r, "/refresh?secret=anything", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAuth_QuerySecret(t *testing.T) {
	r := newAuthRouter("topsecret")

	assert.Equal(t, http.StatusOK, doRequest(r, "/refresh?secret=topsecret", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "/refresh?secret=wrong", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "/refresh", nil).Code)
}

func TestTriggerAuth_HeaderToken(t *testing.T) {
	r := newAuthRouter("topsecret")

	w := doRequest(r, "/refresh", map[string]string{TriggerTokenHeader: "topsecret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, "/refresh", map[string]string{TriggerTokenHeader: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAuth_BearerJWT(t *testing.T) {
	secret := "topsecret"
	r := newAuthRouter(secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cron",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	w := doRequest(r, "/refresh", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusOK, w.Code)

	badSigned, err := token.SignedString([]byte("other-key"))
	require.NoError(t, err)
	w = doRequest(r, "/refresh", map[string]string{"Authorization": "Bearer " + badSigned})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAuth_ExpiredJWT(t *testing.T) {
	secret := "topsecret"
	r := newAuthRouter(secret)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cron",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	w := doRequest(r, "/refresh", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTriggerAuth_BcryptHashedSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	r := newAuthRouter(string(hash))

	assert.Equal(t, http.StatusOK, doRequest(r, "/refresh?secret=topsecret", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "/refresh?secret=wrong", nil).Code)

	// JWTs cannot be verified against a hashed secret.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("topsecret"))
	require.NoError(t, err)
	w := doRequest(r, "/refresh", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
