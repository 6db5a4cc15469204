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

const testSecret = "test-secret"

func signToken(t *testing.T, claims JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() JWTClaims {
	return JWTClaims{
		UserID:     "u-1",
		Name:       "Operator",
		EmployeeID: 42,
		Station:    "CNC-01",
		Roles:      []string{"mes_operator"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	handlers := append(mw, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"employee_id": c.GetInt64(ContextEmployeeID),
			"station":     c.GetString(ContextStation),
		})
	})
	r.GET("/x", handlers...)
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))

	w := do(r, signToken(t, validClaims(), testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"employee_id":42,"station":"CNC-01"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestJWTAuthRejects(t *testing.T) {
	r := newRouter(JWTAuth(testSecret))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	cases := map[string]string{
		"missing":      "",
		"wrong secret": signToken(t, validClaims(), "other"),
		"expired":      signToken(t, expired, testSecret),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(testSecret), RequireRole(RoleSupervisor))

	w := do(r, signToken(t, validClaims(), testSecret))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := validClaims()
	admin.Roles = []string{RoleAdmin}
	w = do(r, signToken(t, admin, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
