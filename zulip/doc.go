// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

// Package zulip is a minimal client for the Zulip REST API covering
// what the bot needs: sending stream messages, reacting with emoji,
// subscribing to a channel, and receiving the inbound message stream
// through the register/events long-poll queue.
//
// All requests authenticate with HTTP Basic auth (bot email + API key).
// Zulip reports failures in a uniform envelope (result/msg/code); the
// client surfaces those as *APIError, distinguishable with errors.As.
package zulip
