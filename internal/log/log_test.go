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

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLogger_AddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf, ComponentTracker)
	l.InfoContext(context.Background(), "habit added", FieldHabitID, "h1")

	out := buf.String()
	if !strings.Contains(out, "component=tracker") || !strings.Contains(out, "habit_id=h1") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf, ComponentHTTP)

	h := Middleware(base)(RequestIDMiddleware(func(r *http.Request) string {
		return r.Header.Get("X-Request-ID")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).InfoContext(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Errorf("request id missing: %s", buf.String())
	}
}

func TestLogHTTPEnd_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.WithValue(context.Background(), LoggerContextKey, bufferLogger(&buf, ""))
	req := httptest.NewRequest(http.MethodPost, "/habits", nil)

	LogHTTPEnd(ctx, req, 500, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status_code=500") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	LogHTTPEnd(ctx, req, 404, 1, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.WithValue(context.Background(), LoggerContextKey, bufferLogger(&buf, ComponentStorage))

	LogError(ctx, "write failed", errors.New("disk full"), ErrorTypeDatabase, OpCreate, NewFields().WithUser("u1"))

	out := buf.String()
	for _, want := range []string{"error_type=database_error", "operation=create", "user_id=u1", `error="disk full"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
