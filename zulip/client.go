// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// ServerURL is the base URL of the Zulip server (e.g., "https://zulip.example.com").
	ServerURL string
	// Email is the bot's email address, the Basic-auth username.
	Email string
	// APIKey is the bot's API key, the Basic-auth password.
	APIKey string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client is an authenticated Zulip API client. It holds the server URL,
// credentials, and HTTP transport, shared with any event queues
// registered through it.
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Zulip client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("zulip: ServerURL is required")
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("zulip: invalid ServerURL %q: %w", config.ServerURL, err)
	}
	if config.Email == "" {
		return nil, fmt.Errorf("zulip: Email is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("zulip: APIKey is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.ServerURL, "/"),
		email:      config.Email,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Email returns the bot's own email address, used by the dispatcher to
// recognize (and ignore) its own messages.
func (c *Client) Email() string {
	return c.email
}

// CloseIdleConnections closes idle HTTP connections in the underlying
// transport's connection pool. Called by the event queue after a
// network disruption to force fresh TCP connections instead of reusing
// a poisoned pooled connection.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// SendMessage sends a message to a stream topic. Returns the message ID.
func (c *Client) SendMessage(ctx context.Context, stream, topic, content string) (int64, error) {
	form := url.Values{
		"type":    {"stream"},
		"to":      {stream},
		"topic":   {topic},
		"content": {content},
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/messages", form)
	if err != nil {
		return 0, fmt.Errorf("zulip: sending message to #%s > %s: %w", stream, topic, err)
	}

	var response sendMessageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("zulip: parsing send response: %w", err)
	}
	return response.ID, nil
}

// AddReaction adds an emoji reaction to a message.
func (c *Client) AddReaction(ctx context.Context, messageID int64, emojiName string) error {
	form := url.Values{"emoji_name": {emojiName}}
	path := fmt.Sprintf("/api/v1/messages/%d/reactions", messageID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, form); err != nil {
		return fmt.Errorf("zulip: reacting to message %d: %w", messageID, err)
	}
	return nil
}

// Subscribe subscribes the bot to a stream, creating it with the given
// description if it does not exist yet.
func (c *Client) Subscribe(ctx context.Context, stream, description string) error {
	encoded, err := json.Marshal([]subscription{{Name: stream, Description: description}})
	if err != nil {
		return fmt.Errorf("zulip: encoding subscription: %w", err)
	}
	form := url.Values{"subscriptions": {string(encoded)}}
	if _, err := c.doRequest(ctx, http.MethodPost, "/api/v1/users/me/subscriptions", form); err != nil {
		return fmt.Errorf("zulip: subscribing to #%s: %w", stream, err)
	}
	return nil
}

// RegisterQueue registers an event queue delivering message events and
// returns an EventQueue positioned at the current end of the stream.
func (c *Client) RegisterQueue(ctx context.Context) (*EventQueue, error) {
	form := url.Values{"event_types": {`["message"]`}}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/register", form)
	if err != nil {
		return nil, fmt.Errorf("zulip: registering event queue: %w", err)
	}

	var response registerResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("zulip: parsing register response: %w", err)
	}
	if response.QueueID == "" {
		return nil, fmt.Errorf("zulip: register response missing queue ID")
	}

	c.logger.Info("event queue registered", "queue_id", response.QueueID)
	return &EventQueue{
		client:      c,
		queueID:     response.QueueID,
		lastEventID: response.LastEventID,
	}, nil
}

// doRequest performs a form-encoded request to the Zulip server and
// returns the response body. On 2xx, returns the body. On 4xx/5xx with
// the standard error envelope, returns an *APIError. For GET requests
// the form travels as the query string.
func (c *Client) doRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	requestURL := c.baseURL + path

	var bodyReader io.Reader
	if method == http.MethodGet {
		if len(form) > 0 {
			requestURL += "?" + form.Encode()
		}
	} else if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	request.SetBasicAuth(c.email, c.apiKey)
	if bodyReader != nil {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil || apiErr.Msg == "" {
		return nil, fmt.Errorf("unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode

	return nil, &apiErr
}
