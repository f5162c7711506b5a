// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package cxdb

// Context describes one branch of conversation history as reported by
// the gateway's context listing. Contexts are created by the store on
// create/fork and are read-only from the client's perspective.
type Context struct {
	// ContextID identifies the branch. Positive, assigned by the store.
	ContextID int64 `json:"context_id"`

	// HeadDepth is the number of turns from the root to the branch head.
	HeadDepth int64 `json:"head_depth"`

	// ClientTag is the free-text origin label recorded when the context
	// was created (e.g., "cxdb-zulip-bot").
	ClientTag string `json:"client_tag"`

	// IsLive reports whether the context is actively being appended to.
	IsLive bool `json:"is_live"`
}

// Turn is one immutable node in a context's turn sequence.
type Turn struct {
	// TurnID is monotonic within a context's lineage.
	TurnID int64 `json:"turn_id"`

	// Depth is the turn's position from the root.
	Depth int64 `json:"depth"`

	// TypeID is the dotted type name identifying the payload schema
	// (e.g., "com.oracle.conversation.Turn").
	TypeID string `json:"type_id"`

	// TypeVersion is the schema version of the payload.
	TypeVersion int `json:"type_version"`

	// PayloadHash is the BLAKE3 digest of the raw payload bytes,
	// assigned by the store. Empty when the turn has no payload.
	PayloadHash []byte `json:"payload_hash,omitempty"`

	// RawPayload is the msgpack-encoded payload. Nil for payload-less
	// turns (markers, tombstones).
	RawPayload []byte `json:"payload,omitempty"`

	// Data is the decoded payload, populated by the client after
	// fetching. Nil when the turn has no payload or the payload could
	// not be decoded.
	Data *Payload `json:"-"`
}

// TurnRef identifies a newly appended turn.
type TurnRef struct {
	TurnID int64 `json:"turn_id"`
	Depth  int64 `json:"depth"`
}

// ForkResult is returned by Fork and CreateContext: a new context ID
// and its head depth. The new branch shares ancestor turns with the
// parent by identity, not by copy.
type ForkResult struct {
	ContextID int64 `json:"context_id"`
	HeadDepth int64 `json:"head_depth"`
}

// listContextsResponse is the envelope for the context listing.
type listContextsResponse struct {
	Contexts []Context `json:"contexts"`
}

// getTurnsResponse is the envelope for a turn page, oldest-first.
type getTurnsResponse struct {
	Turns []Turn `json:"turns"`
}

// appendTurnRequest is the body for appending a turn to a context.
type appendTurnRequest struct {
	TypeID      string `json:"type_id"`
	TypeVersion int    `json:"type_version"`
	Payload     []byte `json:"payload"`
}

// forkRequest is the body for forking at an existing turn.
type forkRequest struct {
	TurnID int64 `json:"turn_id"`
}

// scoreRequest attaches an ephemeral reward annotation to a branch.
type scoreRequest struct {
	Reward float64 `json:"reward"`
	Reason string  `json:"reason,omitempty"`
}
