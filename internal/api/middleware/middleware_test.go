package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/timmy/photocache/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		fields := logger.FromContext(c.Request.Context()).Data
		c.Header("X-Component", fmt.Sprint(fields[logger.FieldComponent]))
		c.String(http.StatusOK, fmt.Sprint(fields[logger.FieldRequestID]))
	})
	return r
}

func TestLoggerMiddlewareAssignsRequestID(t *testing.T) {
	r := newEngine(LoggerMiddleware(logger.Discard()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, w.Body.String())
	assert.Equal(t, "api", w.Header().Get("X-Component"))
}

func TestLoggerMiddlewareKeepsUpstreamRequestID(t *testing.T) {
	r := newEngine(LoggerMiddleware(logger.Discard()))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		wantOrigin string
	}{
		{name: "allow all", cfg: CORSConfig{AllowAllOrigins: true}, origin: "https://a.example", wantOrigin: "*"},
		{name: "listed origin", cfg: CORSConfig{AllowedOrigins: []string{"https://a.example"}}, origin: "https://A.example", wantOrigin: "https://A.example"},
		{name: "unlisted origin", cfg: CORSConfig{AllowedOrigins: []string{"https://a.example"}}, origin: "https://b.example", wantOrigin: ""},
		{name: "empty list", cfg: CORSConfig{}, origin: "https://b.example", wantOrigin: ""},
		{name: "no origin header", cfg: CORSConfig{AllowedOrigins: []string{"*"}}, origin: "", wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(CORS(tt.cfg))
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newEngine(CORS(CORSConfig{AllowAllOrigins: true}))
	r.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://a.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
