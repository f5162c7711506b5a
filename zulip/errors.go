// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"errors"
	"fmt"
)

// APIError represents a structured error response from the Zulip server.
// Callers can use errors.As to extract the structured information:
//
//	var apiErr *zulip.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == zulip.ErrCodeBadEventQueueID { ... }
//	}
type APIError struct {
	// Code is the Zulip error code (e.g., "BAD_EVENT_QUEUE_ID"). Older
	// servers omit it for some errors.
	Code string `json:"code"`
	// Msg is the human-readable error description from the server.
	Msg string `json:"msg"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zulip: %s (%d): %s", e.Code, e.StatusCode, e.Msg)
}

// Zulip error codes the bot reacts to.
const (
	ErrCodeBadEventQueueID = "BAD_EVENT_QUEUE_ID"
	ErrCodeRateLimited     = "RATE_LIMIT_HIT"
	ErrCodeInvalidAPIKey   = "INVALID_API_KEY"
	ErrCodeBadRequest      = "BAD_REQUEST"
)

// IsAPIError checks whether err is an *APIError with the given error code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
