// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot implements the cxdb chat-operations front-end: it parses
// free-text commands from a Zulip channel into typed operations,
// dispatches them against the cxdb store, and renders replies.
//
// The command surface:
//
//	sessions | list
//	show CTX-<id>
//	fork CTX-<id>:<turn_id> "<description>"
//	compare CTX-<id> CTX-<id> [CTX-<id> ...]
//	score CTX-<id> <reward> "<reason>"
//	record CTX-<id> <role> <content...>
//	search <query...>
//	help
//
// Each context maps to a channel topic named "[CTX-N] description";
// forking creates both a store branch and a new topic with a back-link
// to the parent. Processing is strictly sequential: one inbound message
// is handled to completion before the next, so no internal locking is
// needed around the store and chat clients.
package bot
