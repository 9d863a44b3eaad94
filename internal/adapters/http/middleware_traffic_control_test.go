package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/config"
	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// blockingChecks holds RunCheck open until released, like a slow model call.
type blockingChecks struct {
	started chan struct{}
	release chan struct{}
}

func (b blockingChecks) RunCheck(_ context.Context, _ domain.Scope, projectID, frameworkID string, _ domain.AnalysisOptions) (*domain.CheckResult, error) {
	b.started <- struct{}{}
	<-b.release
	return &domain.CheckResult{ProjectID: projectID, FrameworkID: frameworkID, State: domain.CheckCompleted}, nil
}

func newRunCheckRequest() *http.Request {
	return scoped(httptest.NewRequest(http.MethodPost, "/v1/projects/p1/checks", strings.NewReader(`{"framework_id":"fw-1"}`)))
}

func TestRateLimitAppliesToWholeAPI(t *testing.T) {
	handler := newTestHandler(config.Config{
		APIRateLimitRPS:   0.5,
		APIRateLimitBurst: 1,
	})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, scoped(httptest.NewRequest(http.MethodGet, "/v1/activity?project_id=p1", nil)))
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", second.Code)
	}
	if got := second.Header().Get("Retry-After"); got != "3" {
		t.Fatalf("expected Retry-After 3 for 0.5 rps, got %q", got)
	}
	decodeFailure(t, second)
}

func TestBackpressureRejectsChecksBeyondCapacity(t *testing.T) {
	checks := blockingChecks{started: make(chan struct{}), release: make(chan struct{})}
	svc := newTestServices()
	router, err := NewRouter(config.Config{APIMaxInFlight: 1, APIBackpressureWaitMS: 20}, Services{
		Checks:   checks,
		Activity: svc.activity,
	}, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	handler := router.Handler()

	done := make(chan int, 1)
	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, newRunCheckRequest())
		done <- res.Code
	}()
	<-checks.started

	saturated := httptest.NewRecorder()
	handler.ServeHTTP(saturated, scoped(httptest.NewRequest(http.MethodGet, "/v1/activity?project_id=p1", nil)))
	if saturated.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the check holds the only slot, got %d", saturated.Code)
	}
	decodeFailure(t, saturated)

	close(checks.release)
	select {
	case code := <-done:
		if code != http.StatusOK {
			t.Fatalf("running check expected 200, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the running check")
	}

	after := httptest.NewRecorder()
	handler.ServeHTTP(after, scoped(httptest.NewRequest(http.MethodGet, "/v1/activity?project_id=p1", nil)))
	if after.Code != http.StatusOK {
		t.Fatalf("expected slot to be released, got %d", after.Code)
	}
}

func TestBackpressureGivesUpWhenClientLeaves(t *testing.T) {
	slots := make(chan struct{})
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slots <- struct{}{}
		<-r.Context().Done()
	})
	handler := backpressureMiddleware(base, 1, time.Minute)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	go handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/activity", nil).WithContext(firstCtx))
	<-slots

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/activity", nil).WithContext(ctx))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for cancelled waiter, got %d", res.Code)
	}
}
