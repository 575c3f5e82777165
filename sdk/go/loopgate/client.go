package loopgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the LoopGate REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ChatResult is the server response for both chat and approval calls. When
// Type is "approval_request" the ApprovalRequest field carries the pending
// decision; otherwise Message carries the reply text.
type ChatResult struct {
	Type            string           `json:"type"`
	SessionID       string           `json:"session_id"`
	Message         string           `json:"message,omitempty"`
	ApprovalRequest *ApprovalRequest `json:"approval_request,omitempty"`
}

// ApprovalRequest describes a gated action waiting for a human decision.
type ApprovalRequest struct {
	Token        string `json:"token"`
	ActionName   string `json:"action_name"`
	QuerySummary string `json:"query_summary"`
	PromptText   string `json:"prompt_text"`
}

// Pending reports whether the result is suspended on a human decision.
func (r ChatResult) Pending() bool {
	return r.Type == "approval_request" && r.ApprovalRequest != nil
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("loopgate api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the LoopGate API. When httpClient is
// nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) *Client {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		panic(fmt.Sprintf("invalid base url: %v", err))
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}
}

// Chat submits a user utterance. Pass an empty sessionID to start a new
// session; the returned result carries the session identifier to reuse.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (ChatResult, error) {
	payload := struct {
		SessionID string `json:"session_id,omitempty"`
		Message   string `json:"message"`
	}{SessionID: sessionID, Message: message}

	var result ChatResult
	if err := c.post(ctx, "/api/v1/chat", payload, &result); err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

// Approve resolves a pending approval request. The token is single use; a
// second call with the same token fails with a 404 APIError.
func (c *Client) Approve(ctx context.Context, token string, approved bool) (ChatResult, error) {
	payload := struct {
		Token    string `json:"token"`
		Approved bool   `json:"approved"`
	}{Token: token, Approved: approved}

	var result ChatResult
	if err := c.post(ctx, "/api/v1/approve", payload, &result); err != nil {
		return ChatResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
