// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

// Package cxdb is a client for the cxdb conversation-branching store's
// HTTP gateway.
//
// A context is one branch of conversation history: a path from the root
// of a shared, persistent turn tree to that branch's head. Turns are
// immutable once appended; forking creates a new head at an existing
// turn without copying or mutating ancestors.
//
// The gateway speaks JSON. Turn payloads travel as raw msgpack bytes
// (base64 inside the JSON envelope), keyed by small integers so that
// payload schemas can evolve without renaming fields. The client decodes
// known payload types into explicit variants and verifies each turn's
// BLAKE3 content hash when the gateway provides one.
package cxdb
