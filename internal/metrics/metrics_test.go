package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"resumeCraft/internal/resume"
)

func TestObserveEditorOp(t *testing.T) {
	before := testutil.ToFloat64(editorOpsTotal.WithLabelValues("setField", "4001"))
	ObserveEditorOp("setField", resume.ErrInvalidPath)
	after := testutil.ToFloat64(editorOpsTotal.WithLabelValues("setField", "4001"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}

	ObserveEditorOp("appendItem", nil)
	if v := testutil.ToFloat64(editorOpsTotal.WithLabelValues("appendItem", "0")); v < 1 {
		t.Fatalf("expected ok label to be counted")
	}
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(3)
	if v := testutil.ToFloat64(activeSessions); v != 3 {
		t.Fatalf("expected 3, got %v", v)
	}
}

func TestAsynqMetricsMiddleware_Outcomes(t *testing.T) {
	results := map[string]error{
		"test:ok":    nil,
		"test:retry": errors.New("temporary"),
		"test:skip":  fmt.Errorf("bad payload: %w", asynq.SkipRetry),
	}
	h := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		return results[task.Type()]
	}))

	for typ := range results {
		_ = h.ProcessTask(context.Background(), asynq.NewTask(typ, nil))
	}

	for typ, want := range map[string]string{"test:ok": outcomeSuccess, "test:retry": outcomeRetry, "test:skip": outcomeSkipped} {
		if v := testutil.ToFloat64(taskProcessedTotal.WithLabelValues(typ, want)); v != 1 {
			t.Fatalf("%s: expected one %s, got %v", typ, want, v)
		}
		if v := testutil.ToFloat64(taskInProgress.WithLabelValues(typ)); v != 0 {
			t.Fatalf("%s: in-progress gauge should return to 0, got %v", typ, v)
		}
	}
}

func TestGinMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/v1/resumes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/v1/resumes/a", "/v1/resumes/b", "/nope", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	if v := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/v1/resumes/:id", "200")); v != 2 {
		t.Fatalf("expected 2 templated requests, got %v", v)
	}
	if v := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, unmatchedPath, "404")); v != 1 {
		t.Fatalf("expected unmatched request to be counted once, got %v", v)
	}
	if v := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/health", "200")); v != 0 {
		t.Fatalf("health checks should be skipped, got %v", v)
	}
}
