package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCaptureLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := New(Config{
		Component: "test",
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return logger, buf
}

func TestMiddlewarePutsLoggerInContext(t *testing.T) {
	logger, buf := newCaptureLogger()

	var got *Logger
	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if got != logger {
		t.Fatal("FromContext did not return the logger installed by Middleware")
	}

	got.Info("hello")
	if !strings.Contains(buf.String(), "component=test") {
		t.Errorf("log output missing component: %q", buf.String())
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext returned nil for empty context")
	}
	if logger.Component() != "unknown" {
		t.Errorf("fallback component = %q, want unknown", logger.Component())
	}
}

func TestComponentMiddlewareOverridesComponent(t *testing.T) {
	logger, buf := newCaptureLogger()

	chain := Middleware(logger)(ComponentMiddleware(ComponentOverview)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("scoped")
		})))
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "component=overview") {
		t.Errorf("log output missing overridden component: %q", buf.String())
	}
}

func TestRequestIDMiddlewareEnrichesLogger(t *testing.T) {
	logger, buf := newCaptureLogger()

	chain := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("traced")
		})))
	chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(buf.String(), "request_id=req_42") {
		t.Errorf("log output missing request id: %q", buf.String())
	}
}

func TestStructuredLoggerHTTPLifecycle(t *testing.T) {
	logger, buf := newCaptureLogger()
	sl := NewStructuredLogger(logger)

	r := httptest.NewRequest(http.MethodGet, "/api/overview?user_id=1", nil)
	sl.LogHTTPStart(context.Background(), r, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), r, http.StatusOK, 12, "10.0.0.1")

	out := buf.String()
	for _, want := range []string{
		"HTTP request started",
		"HTTP request completed",
		"path=/api/overview",
		"client_ip=10.0.0.1",
		"status_code=200",
		"success=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStructuredLoggerEntryAndError(t *testing.T) {
	logger, buf := newCaptureLogger()
	sl := NewStructuredLogger(logger)

	sl.LogEntryCreated(context.Background(), 7, "groceries", 6032, "2025-06-15")
	sl.LogError(context.Background(), "rebuild failed", errors.New("boom"),
		ComponentOverview, OpResolve, NewFields().WithUser(7))

	out := buf.String()
	for _, want := range []string{
		"Entry created successfully",
		"user_id=7",
		"amount_cents=6032",
		"occurs_on=2025-06-15",
		"rebuild failed",
		"error=boom",
		"operation=resolve",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLogFieldsToSlice(t *testing.T) {
	fields := NewFields().
		WithUser(3).
		WithPeriod("2025-06-06", "2025-07-05").
		WithOperation(OpExpand)

	slice := fields.ToSlice()
	if len(slice) != len(fields)*2 {
		t.Fatalf("ToSlice length = %d, want %d", len(slice), len(fields)*2)
	}

	seen := map[string]any{}
	for i := 0; i < len(slice); i += 2 {
		seen[slice[i].(string)] = slice[i+1]
	}
	if seen[FieldUserID] != int64(3) {
		t.Errorf("user_id = %v, want 3", seen[FieldUserID])
	}
	if seen[FieldPeriodStart] != "2025-06-06" || seen[FieldPeriodEnd] != "2025-07-05" {
		t.Errorf("period fields wrong: %v", seen)
	}
}
