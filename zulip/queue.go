// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// maxPollRetries is the number of consecutive /events failures allowed
// before Next returns an error. Queue expiry does not count; an
// expired queue is re-registered and polling continues.
const maxPollRetries = 5

// EventQueue is a registered Zulip event queue positioned somewhere in
// the message stream. Create one with Client.RegisterQueue, then call
// Next repeatedly; each call long-polls until at least one message
// arrives.
//
// EventQueue is not safe for concurrent use. The bot's dispatch model
// is a single sequential loop, so one queue per process suffices.
type EventQueue struct {
	client      *Client
	queueID     string
	lastEventID int64
}

// Next blocks until at least one inbound message arrives, then returns
// the batch. Heartbeats and other non-message events advance the queue
// position silently.
//
// The long-poll is held server-side; cancellation comes from ctx. On
// transient errors, Next retries up to 5 times, dropping idle
// connections so the next attempt opens a fresh socket. When the server
// reports the queue expired (garbage-collected after a long outage),
// Next registers a fresh queue and continues. Messages delivered while
// no queue existed are lost, matching the at-most-once posture of the
// command protocol.
func (q *EventQueue) Next(ctx context.Context) ([]Message, error) {
	var pollRetries int

	for {
		form := url.Values{
			"queue_id":      {q.queueID},
			"last_event_id": {strconv.FormatInt(q.lastEventID, 10)},
		}
		body, err := q.client.doRequest(ctx, http.MethodGet, "/api/v1/events", form)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("zulip: context cancelled waiting for events: %w", ctx.Err())
			}
			if IsAPIError(err, ErrCodeBadEventQueueID) {
				q.client.logger.Warn("event queue expired, re-registering", "queue_id", q.queueID)
				replacement, registerErr := q.client.RegisterQueue(ctx)
				if registerErr != nil {
					return nil, fmt.Errorf("zulip: re-registering expired queue: %w", registerErr)
				}
				q.queueID = replacement.queueID
				q.lastEventID = replacement.lastEventID
				continue
			}
			pollRetries++
			q.client.CloseIdleConnections()
			if pollRetries > maxPollRetries {
				return nil, fmt.Errorf("zulip: event poll failed %d consecutive times: %w", pollRetries, err)
			}
			q.client.logger.Debug("event poll error, retrying",
				"attempt", pollRetries,
				"max_attempts", maxPollRetries,
				"error", err,
			)
			continue
		}
		pollRetries = 0

		var response eventsResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("zulip: parsing events response: %w", err)
		}

		var messages []Message
		for _, ev := range response.Events {
			if ev.ID > q.lastEventID {
				q.lastEventID = ev.ID
			}
			if ev.Type == "message" && ev.Message != nil {
				messages = append(messages, *ev.Message)
			}
		}
		if len(messages) > 0 {
			return messages, nil
		}
		// Heartbeat-only batch: poll again from the advanced position.
	}
}
