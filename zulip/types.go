// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import "encoding/json"

// Message is one inbound message from the event stream.
type Message struct {
	// ID is the server-assigned message ID, used for reactions.
	ID int64 `json:"id"`

	// SenderEmail identifies the sender (e.g., "cxdb-bot@zulip.local").
	SenderEmail string `json:"sender_email"`

	// Type is "stream" for channel messages or "private" for DMs.
	Type string `json:"type"`

	// Stream is the channel name for stream messages, empty otherwise.
	Stream StreamName `json:"display_recipient"`

	// Topic is the topic within the channel. Zulip's wire name for this
	// field is "subject".
	Topic string `json:"subject"`

	// Content is the raw message text (Markdown source).
	Content string `json:"content"`
}

// StreamName decodes Zulip's display_recipient field, which is a plain
// string for stream messages but a list of user objects for private
// messages. Non-string values decode to the empty name.
type StreamName string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StreamName) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '"' {
		*s = ""
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = StreamName(name)
	return nil
}

func (s StreamName) String() string {
	return string(s)
}

// event is one entry from the /events long-poll response. Only message
// events carry a payload the bot consumes; heartbeats and other event
// types just advance the queue position.
type event struct {
	ID      int64    `json:"id"`
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

// eventsResponse is the envelope for GET /api/v1/events.
type eventsResponse struct {
	Events []event `json:"events"`
}

// registerResponse is the envelope for POST /api/v1/register.
type registerResponse struct {
	QueueID     string `json:"queue_id"`
	LastEventID int64  `json:"last_event_id"`
}

// sendMessageResponse is the envelope for POST /api/v1/messages.
type sendMessageResponse struct {
	ID int64 `json:"id"`
}

// subscription is one stream in a subscription request.
type subscription struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
