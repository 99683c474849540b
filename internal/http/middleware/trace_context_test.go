package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAttachTraceContextGeneratesIDs(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/api/recalls", func(c *gin.Context) {
		if c.GetString("trace_id") == "" {
			t.Error("trace_id not set on gin context")
		}
		if c.GetString("request_id") == "" {
			t.Error("request_id not set on gin context")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/recalls", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-Id"); got == "" {
		t.Fatal("X-Trace-Id response header not set")
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Fatal("X-Request-Id response header not set")
	}
}

func TestAttachTraceContextPreservesInboundIDs(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/api/recalls", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/recalls", nil)
	req.Header.Set("X-Trace-Id", "trace-from-upstream")
	req.Header.Set("X-Request-Id", "req-from-upstream")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Trace-Id"); got != "trace-from-upstream" {
		t.Fatalf("unexpected trace id: got=%q want=%q", got, "trace-from-upstream")
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-from-upstream" {
		t.Fatalf("unexpected request id: got=%q want=%q", got, "req-from-upstream")
	}
}
