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
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	return r
}

func TestAuthRequiredReadsSecretAtRequestTime(t *testing.T) {
	// le secret est posé après l'init du paquet, comme le fait
	// config.Load() au démarrage : il doit quand même être pris en compte
	t.Setenv("JWT_SECRET", "secret-pose-tardivement")

	token := signToken(t, "secret-pose-tardivement", jwt.MapClaims{
		"user_id": "op-42",
		"email":   "op@velora.shop",
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	r := authTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "op-42")
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "le-bon-secret")

	token := signToken(t, "un-autre-secret", jwt.MapClaims{
		"user_id": "op-42",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	r := authTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	r := authTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsExpiredToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "le-bon-secret")

	token := signToken(t, "le-bon-secret", jwt.MapClaims{
		"user_id": "op-42",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	r := authTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
