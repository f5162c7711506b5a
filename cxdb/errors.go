// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package cxdb

import (
	"errors"
	"fmt"
)

// StoreError represents a structured error response from the cxdb
// gateway. Callers can use errors.As to extract the structured
// information:
//
//	var storeErr *cxdb.StoreError
//	if errors.As(err, &storeErr) {
//	    if storeErr.Code == cxdb.ErrCodeContextNotFound { ... }
//	}
type StoreError struct {
	// Code is the machine-readable error code (e.g., "CONTEXT_NOT_FOUND").
	Code string `json:"code"`
	// Detail is the human-readable error description from the gateway.
	Detail string `json:"detail"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cxdb: %s (%d): %s", e.Code, e.StatusCode, e.Detail)
}

// Standard gateway error codes.
const (
	ErrCodeContextNotFound = "CONTEXT_NOT_FOUND"
	ErrCodeTurnNotFound    = "TURN_NOT_FOUND"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeTypeUnknown     = "TYPE_UNKNOWN"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInternal        = "INTERNAL"
)

// IsStoreError checks whether err is a *StoreError with the given error code.
func IsStoreError(err error, code string) bool {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code == code
	}
	return false
}
