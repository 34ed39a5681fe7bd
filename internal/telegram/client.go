package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// sendTimeout bounds every outbound send, including the ones issued from
// OAuth callback goroutines.
const sendTimeout = 5 * time.Second

// Client is a minimal Telegram Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Bot API base URL. Used in tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a Bot API client for the given bot token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, errors.New("bot token cannot be empty")
	}

	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call performs one Bot API method call and decodes the result envelope.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &APIError{Op: method, Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &APIError{Op: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{Op: method, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if !envelope.OK {
		return &APIError{
			Op:   method,
			Code: envelope.ErrorCode,
			Err:  errors.New(envelope.Description),
		}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return &APIError{Op: method, Err: fmt.Errorf("failed to decode result: %w", err)}
		}
	}

	return nil
}

// SendMessage sends an HTML-formatted text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, nil)
}

// SendMessageWithKeyboard sends a text message with an inline keyboard.
func (c *Client) SendMessageWithKeyboard(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) error {
	return c.sendMessage(ctx, chatID, text, keyboard)
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text string, keyboard *InlineKeyboardMarkup) error {
	if text == "" {
		return &APIError{Op: "sendMessage", Err: errors.New("message text cannot be empty")}
	}

	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if keyboard != nil {
		payload["reply_markup"] = keyboard
	}

	return c.call(ctx, "sendMessage", payload, nil)
}

// GetUpdates long-polls for updates with the given offset. The poll
// timeout is expressed in seconds per the Bot API contract.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSeconds,
		"allowed_updates": []string{"message"},
	}

	// The HTTP client timeout must outlast the long-poll window.
	client := *c
	client.httpClient = &http.Client{
		Timeout: time.Duration(timeoutSeconds+10) * time.Second,
	}

	var updates []Update
	if err := client.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
