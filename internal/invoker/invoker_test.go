package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/megaflow/internal/domain"
)

// descFor создаёт descriptor, указывающий на тестовый сервер.
func descFor(t *testing.T, name, serverURL string) domain.ServiceDescriptor {
	t.Helper()
	u, err := url.Parse(serverURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return domain.ServiceDescriptor{
		Name:     name,
		Host:     host,
		Port:     port,
		Endpoint: "/v1/" + name,
		IsRemote: true,
	}
}

func TestHTTPInvoker_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/embedding" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}

		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["text"] != "hello" {
			t.Errorf("unexpected payload: %v", payload)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"text": "emb-ok"})
	}))
	defer server.Close()

	inv := NewHTTPInvoker(Config{})
	outcome := inv.Invoke(context.Background(), descFor(t, "embedding", server.URL), map[string]any{"text": "hello"})

	if !outcome.IsComplete() {
		t.Fatalf("expected Complete, got %s: %v", outcome.Kind, outcome.Err)
	}
	if text, _ := outcome.Text(); text != "emb-ok" {
		t.Errorf("expected emb-ok, got %q", text)
	}
	if outcome.StatusCode != http.StatusOK || outcome.Attempts != 1 {
		t.Errorf("unexpected status/attempts: %d/%d", outcome.StatusCode, outcome.Attempts)
	}
}

func TestHTTPInvoker_NormalizesOpenAIShape(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		key   string
		value any
	}{
		{"chat choice", `{"choices":[{"message":{"role":"assistant","content":"hi"}}]}`, "text", "hi"},
		{"completion choice", `{"choices":[{"text":"hey"}]}`, "text", "hey"},
		{"plain text body", `not json`, "text", "not json"},
		{"json string", `"quoted"`, "text", "quoted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), descFor(t, "llm", server.URL), nil)
			if !outcome.IsComplete() {
				t.Fatalf("expected Complete, got %s", outcome.Kind)
			}
			if outcome.Body[tt.key] != tt.value {
				t.Errorf("expected %s=%v, got %v", tt.key, tt.value, outcome.Body[tt.key])
			}
		})
	}
}

func TestHTTPInvoker_EmbeddingShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"embedding":[0.1,0.2]}]}`)
	}))
	defer server.Close()

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), descFor(t, "embedding", server.URL), nil)
	embedding, ok := outcome.Body["embedding"].([]any)
	if !ok || len(embedding) != 2 {
		t.Errorf("expected embedding vector, got %v", outcome.Body["embedding"])
	}
}

func TestHTTPInvoker_RemoteRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), descFor(t, "llm", server.URL), nil)

	if !outcome.IsFailed() || outcome.Failure != FailureRemoteRejected {
		t.Fatalf("expected RemoteRejected, got %s/%s", outcome.Kind, outcome.Failure)
	}
	if !errors.Is(outcome.Err, ErrRemoteRejected) {
		t.Errorf("error should wrap ErrRemoteRejected: %v", outcome.Err)
	}
	if outcome.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", outcome.StatusCode)
	}
}

func TestHTTPInvoker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	desc := descFor(t, "llm", server.URL)
	server.Close()

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)

	if !outcome.IsFailed() || outcome.Failure != FailureUnreachable {
		t.Fatalf("expected Unreachable, got %s/%s", outcome.Kind, outcome.Failure)
	}
	if !errors.Is(outcome.Err, ErrUnreachable) {
		t.Errorf("error should wrap ErrUnreachable: %v", outcome.Err)
	}
}

func TestHTTPInvoker_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	desc := descFor(t, "llm", server.URL)
	desc.Timeout = 50 * time.Millisecond

	start := time.Now()
	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)

	if outcome.Failure != FailureUnreachable {
		t.Fatalf("expected Unreachable, got %s/%s", outcome.Kind, outcome.Failure)
	}
	if !IsTimeout(outcome.Err) {
		t.Errorf("expected timeout error, got %v", outcome.Err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not honoured")
	}
}

func TestHTTPInvoker_Streaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, chunk := range []string{"He", "llo ", "world"} {
			if i > 0 {
				// Пауза дольше таймаута: открытый поток таймаутом не обрывается
				time.Sleep(60 * time.Millisecond)
			}
			io.WriteString(w, chunk)
			flusher.Flush()
		}
	}))
	defer server.Close()

	desc := descFor(t, "llm", server.URL)
	desc.SupportsStreaming = true
	desc.Timeout = 50 * time.Millisecond

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)
	if !outcome.IsStreaming() {
		t.Fatalf("expected Streaming, got %s: %v", outcome.Kind, outcome.Err)
	}
	defer outcome.Stream.Close()

	if outcome.Stream.Node() != "llm" {
		t.Errorf("unexpected node %s", outcome.Stream.Node())
	}
	if outcome.Stream.ContentType() != "text/event-stream" {
		t.Errorf("unexpected content type %s", outcome.Stream.ContentType())
	}

	data, err := io.ReadAll(outcome.Stream)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(data) != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", string(data))
	}
}

func TestHTTPInvoker_StreamingRequiresCapability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: x\n\n")
	}))
	defer server.Close()

	// SupportsStreaming = false: тело читается полностью
	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), descFor(t, "llm", server.URL), nil)
	if !outcome.IsComplete() {
		t.Fatalf("expected Complete, got %s", outcome.Kind)
	}
}

func TestHTTPInvoker_JSONFromStreamingCapableService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"full"}`)
	}))
	defer server.Close()

	desc := descFor(t, "llm", server.URL)
	desc.SupportsStreaming = true

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)
	if !outcome.IsComplete() {
		t.Fatalf("expected Complete, got %s", outcome.Kind)
	}
}

func TestHTTPInvoker_RetryOnStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"text":"ok"}`)
	}))
	defer server.Close()

	desc := descFor(t, "llm", server.URL)
	desc.Retry = &domain.RetryPolicy{
		MaxAttempts:    3,
		InitialDelayMs: 1,
		OnStatus:       []int{http.StatusTooManyRequests},
	}

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)
	if !outcome.IsComplete() {
		t.Fatalf("expected Complete after retries, got %s: %v", outcome.Kind, outcome.Err)
	}
	if outcome.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", outcome.Attempts)
	}
}

func TestHTTPInvoker_NoRetryOnUnlistedStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	desc := descFor(t, "llm", server.URL)
	desc.Retry = &domain.RetryPolicy{MaxAttempts: 5, InitialDelayMs: 1, OnStatus: []int{503}}

	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(), desc, nil)
	if outcome.Failure != FailureRemoteRejected {
		t.Fatalf("expected RemoteRejected, got %s", outcome.Failure)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPInvoker_InvalidPayload(t *testing.T) {
	outcome := NewHTTPInvoker(Config{}).Invoke(context.Background(),
		domain.ServiceDescriptor{Name: "x", Host: "localhost", Port: 1},
		map[string]any{"bad": make(chan int)})

	if outcome.Failure != FailureInvalidRequest || !errors.Is(outcome.Err, ErrInvalidPayload) {
		t.Errorf("expected InvalidRequest, got %s: %v", outcome.Failure, outcome.Err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		policy  *domain.RetryPolicy
		want    time.Duration
	}{
		{"nil policy", 1, nil, time.Second},
		{"fixed", 3, &domain.RetryPolicy{Backoff: "fixed", InitialDelayMs: 100}, 100 * time.Millisecond},
		{"exponential", 3, &domain.RetryPolicy{Backoff: "exponential", InitialDelayMs: 100}, 400 * time.Millisecond},
		{"capped", 10, &domain.RetryPolicy{Backoff: "exponential", InitialDelayMs: 100, MaxDelayMs: 500}, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateBackoff(tt.attempt, tt.policy); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	var cancelled atomic.Int32
	body := io.NopCloser(nil)
	s := NewStream("llm", "text/event-stream", body, func() { cancelled.Add(1) })

	s.Close()
	s.Close()

	if cancelled.Load() != 1 {
		t.Errorf("cancel should run once, ran %d times", cancelled.Load())
	}
}

func TestCloseStreams_KeepsSelected(t *testing.T) {
	var closedA, closedB atomic.Bool
	a := NewStream("a", "", nil, func() { closedA.Store(true) })
	b := NewStream("b", "", nil, func() { closedB.Store(true) })

	outcomes := map[string]Outcome{
		"a": Streaming(a),
		"b": Streaming(b),
		"c": Complete(nil),
	}

	if err := CloseStreams(outcomes, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closedA.Load() {
		t.Error("kept stream must stay open")
	}
	if !closedB.Load() {
		t.Error("other streams must be closed")
	}
}
