package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (string, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) { seen = Value(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w.Header().Get("X-Request-ID")
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	seen, echoed := serve(t, "client-42.a_b")
	assert.Equal(t, "client-42.a_b", seen)
	assert.Equal(t, seen, echoed)
}

func TestMiddlewareReplacesMissingOrHostileID(t *testing.T) {
	for _, header := range []string{"", "bad id\nInjected: 1", strings.Repeat("x", 65)} {
		seen, echoed := serve(t, header)
		_, err := uuid.Parse(seen)
		require.NoError(t, err, header)
		assert.Equal(t, seen, echoed)
	}
}
