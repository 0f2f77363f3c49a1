package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithNode(WithRequestID(NewLogger(&buf, "json", slog.LevelInfo), "req-1"), "llm")

	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info("invoked")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != "req-1" || entry["node"] != "llm" || entry["msg"] != "invoked" {
		t.Errorf("unexpected log entry: %v", entry)
	}

	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger for empty context")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRequest("SUCCEEDED")
	m.ObserveRequest("SUCCEEDED")
	m.ObserveNode("llm", "complete", 20*time.Millisecond)
	m.ObserveHTTP("POST /v1/chat/completions", 404, time.Millisecond)
	m.ScheduleStarted()
	m.ScheduleStarted()
	m.ScheduleFinished()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("SUCCEEDED")); got != 2 {
		t.Errorf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.nodeCalls.WithLabelValues("llm", "complete")); got != 1 {
		t.Errorf("expected 1 node call, got %v", got)
	}
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST /v1/chat/completions", "4xx")); got != 1 {
		t.Errorf("expected 1 http request in 4xx, got %v", got)
	}
	if got := testutil.ToFloat64(m.inflightGraphs); got != 1 {
		t.Errorf("expected 1 inflight schedule, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("FAILED")
	m.ObserveNode("llm", "failed", time.Second)
	m.ObserveHTTP("GET /healthz", 200, time.Second)
	m.ScheduleStarted()
	m.ScheduleFinished()
}

func TestStatusLabel(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 302: "3xx", 400: "4xx", 503: "5xx"} {
		if got := statusLabel(code); got != want {
			t.Errorf("statusLabel(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	if err := InstallExporter("test", exporter); err != nil {
		t.Fatalf("install exporter: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "schedule")
	_, child := StartSpan(ctx, "invoke llm")
	EndSpan(child, errors.New("unreachable"))
	EndSpan(span, nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "invoke llm" || spans[0].Status.Code != codes.Error {
		t.Errorf("unexpected child span: %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Status.Code != codes.Ok || spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Errorf("unexpected parent span: %v", spans[1].Status)
	}
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing("test", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
