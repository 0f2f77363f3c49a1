package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ChatMessage — сообщение диалога.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest — chat-запрос.
type ChatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      *bool         `json:"stream,omitempty"`
}

// ChatResponse — ответ в формате chat completion.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// Content возвращает текст первого варианта ответа.
func (r *ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// NodeResponse — узел графа из API.
type NodeResponse struct {
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	URL       string   `json:"url"`
	Streaming bool     `json:"streaming"`
	Inputs    []string `json:"inputs"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// GraphResponse — топология графа из API.
type GraphResponse struct {
	Nodes []NodeResponse `json:"nodes"`
	Edges []struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"edges"`
	Roots   []string `json:"roots"`
	Leaves  []string `json:"leaves"`
	Primary string   `json:"primary,omitempty"`
}

// NodeRecordResponse — результат узла из API.
type NodeRecordResponse struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID         string               `json:"id"`
	Model      string               `json:"model"`
	Status     string               `json:"status"`
	Streamed   bool                 `json:"streamed"`
	Nodes      []NodeRecordResponse `json:"nodes,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  string               `json:"started_at"`
	FinishedAt string               `json:"finished_at,omitempty"`
	DurationMs int64                `json:"duration_ms"`
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для megaflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// streamClient — без общего таймаута: поток может идти дольше.
	streamClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		streamClient: &http.Client{},
	}
}

// --- Chat ---

// Chat отправляет chat-запрос и возвращает собранный ответ.
func (c *Client) Chat(req ChatRequest) (*ChatResponse, error) {
	resp, err := c.do(c.httpClient, http.MethodPost, "/v1/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chat, nil
}

// ChatStream отправляет chat-запрос с stream=true и копирует тело ответа в w.
// Если сервер ответил JSON (сервис не умеет поток), в w пишется текст ответа.
func (c *Client) ChatStream(req ChatRequest, w io.Writer) error {
	stream := true
	req.Stream = &stream

	resp, err := c.do(c.streamClient, http.MethodPost, "/v1/chat/completions", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if resp.Header.Get("Content-Type") == "application/json" {
		var chat ChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		_, err := fmt.Fprintln(w, chat.Content())
		return err
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	return nil
}

// --- Graph ---

// Graph возвращает топологию графа сервисов.
func (c *Client) Graph() (*GraphResponse, error) {
	var graph GraphResponse
	err := c.get("/v1/graph", &graph)
	return &graph, err
}

// --- Executions ---

// ListExecutions возвращает историю выполнений.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var executions []ExecutionResponse
	err := c.list("/v1/executions", params, &executions)
	return executions, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/v1/executions/"+id, &exec)
	return &exec, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(c.httpClient, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(c.httpClient, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(httpClient *http.Client, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
