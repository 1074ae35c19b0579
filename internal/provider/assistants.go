package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of an assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunRequiresAction RunStatus = "requires_action"
)

// Terminal reports whether the run will make no further progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// RunError carries the provider's failure reason for a terminal run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is the core's view of a provider run.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

// ThreadMessage is one message as stored on a provider thread.
type ThreadMessage struct {
	ID        string
	Role      string
	Content   string
	CreatedAt int64
}

// ThreadClient is the thread/run/poll contract the conversational core
// depends on. Threads are provider-owned bounded contexts referenced only by
// opaque ids.
type ThreadClient interface {
	CreateThread(ctx context.Context) (string, error)
	AppendMessage(ctx context.Context, threadID, role, content string) error
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListMessages(ctx context.Context, threadID, order string, limit int) ([]ThreadMessage, error)
}

const defaultAssistantsBaseURL = "https://api.openai.com/v1"

// AssistantsClient talks to an OpenAI-Assistants-shaped HTTP API.
type AssistantsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewAssistantsClient builds a thread client for the given endpoint.
func NewAssistantsClient(baseURL, apiKey string) *AssistantsClient {
	if baseURL == "" {
		baseURL = defaultAssistantsBaseURL
	}
	return &AssistantsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *AssistantsClient) CreateThread(ctx context.Context) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &resp); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create thread: empty id in response")
	}
	return resp.ID, nil
}

func (c *AssistantsClient) AppendMessage(ctx context.Context, threadID, role, content string) error {
	body := map[string]any{"role": role, "content": content}
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, nil); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (c *AssistantsClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	body := map[string]any{"assistant_id": assistantID}
	var resp runPayload
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &resp); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return resp.toRun(), nil
}

func (c *AssistantsClient) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var resp runPayload
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return resp.toRun(), nil
}

func (c *AssistantsClient) ListMessages(ctx context.Context, threadID, order string, limit int) ([]ThreadMessage, error) {
	if order == "" {
		order = "desc"
	}
	if limit <= 0 {
		limit = 20
	}
	path := "/threads/" + threadID + "/messages?order=" + order + "&limit=" + strconv.Itoa(limit)
	var resp struct {
		Data []messagePayload `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]ThreadMessage, 0, len(resp.Data))
	for _, m := range resp.Data {
		out = append(out, m.toMessage())
	}
	return out, nil
}

type runPayload struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error"`
}

func (p *runPayload) toRun() *Run {
	return &Run{ID: p.ID, ThreadID: p.ThreadID, Status: p.Status, LastError: p.LastError}
}

type messagePayload struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

func (p *messagePayload) toMessage() ThreadMessage {
	var sb strings.Builder
	for _, part := range p.Content {
		if part.Type == "text" {
			sb.WriteString(part.Text.Value)
		}
	}
	return ThreadMessage{ID: p.ID, Role: p.Role, Content: sb.String(), CreatedAt: p.CreatedAt}
}

func (c *AssistantsClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("provider %s %s: %s (%s)", method, path, apiErr.Error.Message, resp.Status)
		}
		return fmt.Errorf("provider %s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
