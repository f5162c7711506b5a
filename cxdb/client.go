// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package cxdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// GatewayURL is the base URL of the cxdb gateway (e.g., "http://localhost:8080").
	GatewayURL string
	// ClientTag is the free-text origin label recorded on contexts this
	// client creates (e.g., "cxdb-zulip-bot").
	ClientTag string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the cxdb gateway. It holds the base URL and HTTP
// transport; it is safe to reuse across sequential calls but performs
// no internal concurrency.
type Client struct {
	baseURL    string
	clientTag  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new gateway client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.GatewayURL == "" {
		return nil, fmt.Errorf("cxdb: GatewayURL is required")
	}
	if _, err := url.Parse(config.GatewayURL); err != nil {
		return nil, fmt.Errorf("cxdb: invalid GatewayURL %q: %w", config.GatewayURL, err)
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
		baseURL:    strings.TrimRight(config.GatewayURL, "/"),
		clientTag:  config.ClientTag,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// ListContexts returns up to limit contexts, most recently active first.
func (c *Client) ListContexts(ctx context.Context, limit int) ([]Context, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v1/contexts", nil, query)
	if err != nil {
		return nil, fmt.Errorf("cxdb: listing contexts: %w", err)
	}

	var response listContextsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("cxdb: parsing context listing: %w", err)
	}
	return response.Contexts, nil
}

// GetLast fetches the most recent limit turns of a context, oldest-first
// within the page, with payloads included. Payload hashes are verified
// and payloads decoded before the turns are returned. A turn whose
// payload cannot be decoded is returned with nil Data; rendering treats
// it as payload-less rather than failing the whole page.
func (c *Client) GetLast(ctx context.Context, contextID int64, limit int) ([]Turn, error) {
	query := url.Values{"include_payload": {"true"}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := fmt.Sprintf("/api/v1/contexts/%d/turns", contextID)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, fmt.Errorf("cxdb: fetching turns for context %d: %w", contextID, err)
	}

	var response getTurnsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("cxdb: parsing turns for context %d: %w", contextID, err)
	}

	for i := range response.Turns {
		turn := &response.Turns[i]
		if err := VerifyPayloadHash(turn); err != nil {
			return nil, err
		}
		if len(turn.RawPayload) == 0 {
			continue
		}
		data, err := DecodePayload(turn.TypeID, turn.RawPayload)
		if err != nil {
			c.logger.Warn("undecodable turn payload",
				"context_id", contextID,
				"turn_id", turn.TurnID,
				"type_id", turn.TypeID,
				"error", err,
			)
			continue
		}
		turn.Data = data
	}
	return response.Turns, nil
}

// AppendTurn appends a conversational turn (role + content) to a
// context's head. The payload is an integer-keyed msgpack map of type
// com.oracle.conversation.Turn, the schema the store's SDKs write.
func (c *Client) AppendTurn(ctx context.Context, contextID int64, role, content string) (TurnRef, error) {
	payload, err := msgpack.Marshal(map[int64]any{
		1: role,
		2: content,
	})
	if err != nil {
		return TurnRef{}, fmt.Errorf("cxdb: encoding conversational payload: %w", err)
	}

	path := fmt.Sprintf("/api/v1/contexts/%d/turns", contextID)
	body, err := c.doRequest(ctx, http.MethodPost, path, appendTurnRequest{
		TypeID:      TypeConversation,
		TypeVersion: 1,
		Payload:     payload,
	}, nil)
	if err != nil {
		return TurnRef{}, fmt.Errorf("cxdb: appending turn to context %d: %w", contextID, err)
	}

	var ref TurnRef
	if err := json.Unmarshal(body, &ref); err != nil {
		return TurnRef{}, fmt.Errorf("cxdb: parsing append response: %w", err)
	}
	return ref, nil
}

// Fork creates a new context whose head is the given turn. The new
// branch shares all ancestor turns with the parent by identity.
func (c *Client) Fork(ctx context.Context, turnID int64) (ForkResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/forks", forkRequest{TurnID: turnID}, nil)
	if err != nil {
		return ForkResult{}, fmt.Errorf("cxdb: forking at turn %d: %w", turnID, err)
	}

	var result ForkResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ForkResult{}, fmt.Errorf("cxdb: parsing fork response: %w", err)
	}
	return result, nil
}

// CreateContext creates a new empty context rooted at the tree root.
func (c *Client) CreateContext(ctx context.Context) (ForkResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v1/contexts", struct{}{}, nil)
	if err != nil {
		return ForkResult{}, fmt.Errorf("cxdb: creating context: %w", err)
	}

	var result ForkResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ForkResult{}, fmt.Errorf("cxdb: parsing create response: %w", err)
	}
	return result, nil
}

// ScoreBranch attaches an ephemeral reward annotation to a branch. The
// annotation lives beside the turn tree; it is not a turn and does not
// move the branch head.
func (c *Client) ScoreBranch(ctx context.Context, contextID int64, reward float64, reason string) error {
	path := fmt.Sprintf("/api/v1/contexts/%d/score", contextID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, scoreRequest{Reward: reward, Reason: reason}, nil); err != nil {
		return fmt.Errorf("cxdb: scoring context %d: %w", contextID, err)
	}
	return nil
}

// doRequest performs an HTTP request to the gateway and returns the
// response body. On 2xx, returns the body. On 4xx/5xx, returns a
// *StoreError. query may be nil for endpoints without query parameters.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.clientTag != "" {
		request.Header.Set("X-Cxdb-Client", c.clientTag)
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

	// All gateway error responses use the same JSON shape.
	var storeErr StoreError
	if jsonErr := json.Unmarshal(responseBody, &storeErr); jsonErr != nil || storeErr.Code == "" {
		return nil, fmt.Errorf("unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	storeErr.StatusCode = response.StatusCode

	return nil, &storeErr
}
