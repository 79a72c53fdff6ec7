// Package convo provides an HTTP client for the intake API, implementing the
// conversation service used by the intake state machine.
package convo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chatforms/intakegate/internal/models"
)

// DefaultTimeout is the default per-request timeout for API calls.
const DefaultTimeout = 15 * time.Second

// Opts holds configuration options for the client.
type Opts struct {
	// BaseURL is the root URL of the intake API, e.g. "http://localhost:8080".
	BaseURL string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
	// HTTPClient overrides the default HTTP client when set.
	HTTPClient *http.Client
}

// Option configures Opts.
type Option func(*Opts)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client is an HTTP implementation of the conversation service.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for the intake API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	o := Opts{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	httpc := o.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: o.Timeout}
	}
	return &Client{baseURL: o.BaseURL, httpc: httpc}, nil
}

// CreateConversation creates a new conversation and returns its id.
func (c *Client) CreateConversation(ctx context.Context, chatbotID, userID string) (string, error) {
	slog.Debug("convo.Client.CreateConversation: creating", "chatbotID", chatbotID, "userID", userID)
	path := fmt.Sprintf("/chatbots/%s/conversations", url.PathEscape(chatbotID))
	var result models.CreateConversationResponse
	err := c.do(ctx, http.MethodPost, path, models.CreateConversationRequest{UserID: userID}, &result)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	if result.ConversationID == "" {
		return "", fmt.Errorf("server returned empty conversation id")
	}
	slog.Info("convo.Client.CreateConversation: created", "conversationID", result.ConversationID)
	return result.ConversationID, nil
}

// WelcomeFacts fetches the gate facts for a chatbot and user.
func (c *Client) WelcomeFacts(ctx context.Context, chatbotID, userID, conversationID string) (*models.WelcomeFacts, error) {
	slog.Debug("convo.Client.WelcomeFacts: fetching", "chatbotID", chatbotID, "userID", userID)
	q := url.Values{"user_id": {userID}}
	if conversationID != "" {
		q.Set("conversation_id", conversationID)
	}
	path := fmt.Sprintf("/chatbots/%s/welcome?%s", url.PathEscape(chatbotID), q.Encode())
	var facts models.WelcomeFacts
	if err := c.do(ctx, http.MethodGet, path, nil, &facts); err != nil {
		return nil, fmt.Errorf("failed to fetch welcome facts: %w", err)
	}
	return &facts, nil
}

// CommitIntake submits the batched intake transcript and responses.
func (c *Client) CommitIntake(ctx context.Context, conversationID string, commit models.BatchCommitRequest) error {
	slog.Debug("convo.Client.CommitIntake: committing", "conversationID", conversationID, "messages", len(commit.Messages), "responses", len(commit.Responses))
	path := fmt.Sprintf("/conversations/%s/commit", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodPost, path, commit, nil); err != nil {
		return fmt.Errorf("failed to commit intake: %w", err)
	}
	return nil
}

// FetchSuggestions retrieves suggestion pills for a chatbot.
func (c *Client) FetchSuggestions(ctx context.Context, chatbotID string) ([]string, error) {
	path := fmt.Sprintf("/chatbots/%s/suggestions", url.PathEscape(chatbotID))
	var result models.SuggestionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch suggestions: %w", err)
	}
	return result.Suggestions, nil
}

// envelope mirrors the API response wrapper for decoding.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// do performs a request and decodes the envelope's result into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}
	if out != nil {
		if len(env.Result) == 0 {
			return fmt.Errorf("server returned empty result")
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}
	return nil
}
