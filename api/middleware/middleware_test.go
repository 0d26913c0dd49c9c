package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/tunegrab/pkg/logger"
	"go.uber.org/zap"
)

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	return router
}

func serve(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRecovery(t *testing.T) {
	router := newTestRouter(Recovery(zap.NewNop(), nil))

	w := serve(router, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok").Code)
}

func TestRecovery_WritesErrorCategory(t *testing.T) {
	dir := t.TempDir()
	ml, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	router := newTestRouter(Recovery(zap.NewNop(), ml))
	router.DELETE("/library/:id", func(c *gin.Context) { panic("disk gone") })

	w := serve(router, http.MethodDelete, "/library/abc123")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NoError(t, ml.Close())

	entries, err := logger.NewLogReader(dir).ReadLogs(logger.CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Handler panicked", entries[0].Message)
	assert.Equal(t, "disk gone", entries[0].Fields["panic"])
	assert.Equal(t, "/library/:id", entries[0].Fields["route"])
	assert.Equal(t, "abc123", entries[0].Fields["id"])
}

func TestRecovery_KeepsWrittenStatus(t *testing.T) {
	router := newTestRouter(Recovery(zap.NewNop(), nil))
	router.GET("/partial", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
		c.Writer.WriteHeaderNow()
		panic("late")
	})

	w := serve(router, http.MethodGet, "/partial")

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.NotContains(t, w.Body.String(), "internal server error")
}

func TestCORS(t *testing.T) {
	router := newTestRouter(CORS())

	w := serve(router, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(router, http.MethodOptions, "/ok")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(RateLimit(0.001, 2))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/ok").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	router := newTestRouter(RateLimit(0, 0))

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok").Code)
	}
}

func TestLogger_PassesThrough(t *testing.T) {
	router := newTestRouter(Logger(zap.NewNop(), nil))

	w := serve(router, http.MethodGet, "/ok")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}
