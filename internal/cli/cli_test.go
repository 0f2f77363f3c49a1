package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/megaflow/internal/mq"
)

// testAPI — минимальная имитация megaflow API.
func testAPI(t *testing.T) (*httptest.Server, *ChatRequest) {
	t.Helper()
	got := &ChatRequest{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got.Stream != nil && *got.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, "Hello")
			w.(http.Flusher).Flush()
			io.WriteString(w, " world")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","model":"m","choices":[{"message":{"role":"assistant","content":"LLM:emb-ok"},"finish_reason":"stop"}]}`)
	})
	mux.HandleFunc("GET /v1/graph", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"nodes":[{"name":"embedding","role":"EMBEDDING","url":"http://e:7000/v1/embeddings"},{"name":"llm","role":"LLM","url":"http://l:9000/v1/chat/completions","streaming":true,"depends_on":["embedding"]}],"edges":[{"from":"embedding","to":"llm"}],"roots":["embedding"],"leaves":["llm"],"primary":"llm"}}`)
	})
	mux.HandleFunc("GET /v1/executions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "FAILED" {
			t.Errorf("expected status filter, got %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"data":[{"id":"e1","model":"m","status":"FAILED","duration_ms":12,"started_at":"2026-01-01T00:00:00Z"}],"total":1}`)
	})
	mux.HandleFunc("GET /v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":"EXECUTION_NOT_FOUND","message":"execution not found"}}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, got
}

func run(t *testing.T, server *httptest.Server, jsonMode bool, cmdFn func(func() *Client, func() *Output) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(server.URL) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	cmd := cmdFn(clientFn, outputFn)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestClient_Chat(t *testing.T) {
	server, got := testAPI(t)
	client := NewClient(server.URL)

	maxTokens := 64
	resp, err := client.Chat(ChatRequest{
		Messages:  []ChatMessage{{Role: "user", Content: "What is AI?"}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if resp.Content() != "LLM:emb-ok" {
		t.Errorf("expected LLM:emb-ok, got %q", resp.Content())
	}
	if got.MaxTokens == nil || *got.MaxTokens != 64 || got.Stream != nil {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestClient_ChatStream(t *testing.T) {
	server, _ := testAPI(t)
	client := NewClient(server.URL)

	var buf bytes.Buffer
	if err := client.ChatStream(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}, &buf); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if buf.String() != "Hello world" {
		t.Errorf("expected Hello world, got %q", buf.String())
	}
}

func TestClient_APIError(t *testing.T) {
	server, _ := testAPI(t)
	client := NewClient(server.URL)

	_, err := client.GetExecution("missing")
	if err == nil || !strings.Contains(err.Error(), "EXECUTION_NOT_FOUND: execution not found") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestChatCmd(t *testing.T) {
	server, got := testAPI(t)

	out, err := run(t, server, false, NewChatCmd, "What", "is", "AI?", "--max-tokens", "32")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if strings.TrimSpace(out) != "LLM:emb-ok" {
		t.Errorf("unexpected output: %q", out)
	}
	if got.Messages[0].Content != "What is AI?" || *got.MaxTokens != 32 || got.Temperature != nil {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestChatCmd_Stream(t *testing.T) {
	server, _ := testAPI(t)

	out, err := run(t, server, false, NewChatCmd, "hi", "--stream")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if out != "Hello world" {
		t.Errorf("expected streamed output, got %q", out)
	}
}

func TestGraphCmd(t *testing.T) {
	server, _ := testAPI(t)

	out, err := run(t, server, false, NewGraphCmd)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %q", out)
	}
	if !strings.HasPrefix(lines[3], "llm") || !strings.Contains(lines[3], "embedding") || !strings.HasSuffix(lines[3], "*") {
		t.Errorf("unexpected llm row: %q", lines[3])
	}
}

func TestExecutionsListCmd_JSON(t *testing.T) {
	server, _ := testAPI(t)

	out, err := run(t, server, true, NewExecutionsCmd, "list", "--status", "FAILED")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var executions []ExecutionResponse
	if err := json.Unmarshal([]byte(out), &executions); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(executions) != 1 || executions[0].Status != "FAILED" || executions[0].DurationMs != 12 {
		t.Errorf("unexpected executions: %+v", executions)
	}
}

func TestPrintEvent(t *testing.T) {
	var stdout bytes.Buffer
	out := NewOutputTo(false, &stdout, io.Discard)

	id := uuid.New()
	msg := &mq.Message{
		Type: mq.MessageTypeExecutionCompleted,
		Payload: map[string]any{
			"execution_id": id.String(),
			"model":        "m",
			"status":       "SUCCEEDED",
			"duration_ms":  42,
			"finished_at":  time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC).Format(time.RFC3339),
		},
	}

	if err := printEvent(out, msg); err != nil {
		t.Fatalf("print: %v", err)
	}
	line := stdout.String()
	if !strings.Contains(line, "10:30:00") || !strings.Contains(line, "SUCCEEDED") || !strings.Contains(line, id.String()) {
		t.Errorf("unexpected line: %q", line)
	}

	stdout.Reset()
	if err := printEvent(out, &mq.Message{Type: "other"}); err != nil || stdout.Len() != 0 {
		t.Errorf("expected other types to be ignored, got %q, %v", stdout.String(), err)
	}
}
