package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/credpoints-api/internal/models"
	"github.com/noah-isme/credpoints-api/internal/service"
	appErrors "github.com/noah-isme/credpoints-api/pkg/errors"
	"github.com/noah-isme/credpoints-api/pkg/logger"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(logger.ActorKey)})
	})
	r.GET("/protected", handlers...)
	return r
}

func perform(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	validator := &validatorStub{claims: &models.JWTClaims{UserID: "S1", Role: models.RoleStaff}}
	r := newRouter(JWT(validator))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "Token abc").Code)

	w := perform(r, "Bearer abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", validator.token)
	assert.Contains(t, w.Body.String(), `"actor":"S1"`)

	validator.err = appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	w = perform(r, "bearer abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRequireRoles(t *testing.T) {
	validator := &validatorStub{claims: &models.JWTClaims{UserID: "S1", Role: models.RoleStaff}}
	r := newRouter(JWT(validator), RequireRoles(models.RoleAdvisor, models.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, perform(r, "Bearer abc").Code)

	validator.claims = &models.JWTClaims{UserID: "A1", Role: models.RoleAdvisor}
	assert.Equal(t, http.StatusOK, perform(r, "Bearer abc").Code)

	bare := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, perform(bare, "").Code)
}

func TestRateLimiterPerActor(t *testing.T) {
	validator := &validatorStub{claims: &models.JWTClaims{UserID: "S1", Role: models.RoleStaff}}
	limiter := NewRateLimiter(0.001, 2, nil)
	r := newRouter(JWT(validator), limiter.Handler())

	assert.Equal(t, http.StatusOK, perform(r, "Bearer abc").Code)
	assert.Equal(t, http.StatusOK, perform(r, "Bearer abc").Code)
	w := perform(r, "Bearer abc")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrRateLimited.Code)

	validator.claims = &models.JWTClaims{UserID: "S2", Role: models.RoleStaff}
	assert.Equal(t, http.StatusOK, perform(r, "Bearer abc").Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newRouter(NewRateLimiter(0, 0, nil).Handler())
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, perform(r, "").Code)
	}
}

func TestMetricsLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/requests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/requests/r1", "/requests/r2", "/health", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `credpoints_http_requests_total{method="GET",path="/requests/:id",status="200"} 2`)
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.NotContains(t, body, `path="/health"`)
	assert.NotContains(t, body, "/requests/r1")
}
