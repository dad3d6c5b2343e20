package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	appctx "catalogue/internal/core/context"
)

func TestTrace(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen *appctx.TraceContext
	r := gin.New()
	r.Use(Trace())
	r.GET("/", func(c *gin.Context) {
		seen = appctx.GetTrace(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	t.Run("reuses headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-1")
		req.Header.Set(HeaderTraceID, "trace-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
		assert.Equal(t, "trace-1", w.Header().Get(HeaderTraceID))
		assert.Equal(t, "trace-1", seen.TraceID)
	})

	t.Run("generates ids", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
		assert.Equal(t, seen.TraceID, w.Header().Get(HeaderTraceID))
	})

	t.Run("prefers span context", func(t *testing.T) {
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1, 2, 3},
			SpanID:  trace.SpanID{4, 5, 6},
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
		req.Header.Set(HeaderTraceID, "ignored")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, sc.TraceID().String(), seen.TraceID)
		assert.Equal(t, sc.SpanID().String(), seen.SpanID)
	})
}
