// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/register" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if err := request.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if request.PostForm.Get("event_types") != `["message"]` {
			t.Errorf("event_types = %q", request.PostForm.Get("event_types"))
		}
		writer.Write([]byte(`{"result": "success", "msg": "", "queue_id": "q-1", "last_event_id": -1}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	queue, err := client.RegisterQueue(context.Background())
	if err != nil {
		t.Fatalf("RegisterQueue failed: %v", err)
	}
	if queue.queueID != "q-1" || queue.lastEventID != -1 {
		t.Errorf("unexpected queue state: %+v", queue)
	}
}

func TestQueueNext(t *testing.T) {
	t.Run("returns messages and advances position", func(t *testing.T) {
		var lastEventIDs []string
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			lastEventIDs = append(lastEventIDs, request.URL.Query().Get("last_event_id"))
			writer.Write([]byte(`{"result": "success", "msg": "", "events": [
				{"id": 5, "type": "heartbeat"},
				{"id": 6, "type": "message", "message": {"id": 100, "sender_email": "alice@z", "type": "stream", "display_recipient": "cxdb", "subject": "general", "content": "sessions"}}
			]}`))
		}))
		defer server.Close()

		client := newTestClient(t, server)
		queue := &EventQueue{client: client, queueID: "q-1", lastEventID: 4}

		messages, err := queue.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if len(messages) != 1 {
			t.Fatalf("got %d messages, want 1", len(messages))
		}
		if messages[0].Content != "sessions" || messages[0].Stream != "cxdb" {
			t.Errorf("unexpected message: %+v", messages[0])
		}
		if queue.lastEventID != 6 {
			t.Errorf("lastEventID = %d, want 6", queue.lastEventID)
		}
		if lastEventIDs[0] != "4" {
			t.Errorf("first poll last_event_id = %q, want 4", lastEventIDs[0])
		}
	})

	t.Run("heartbeat-only batches keep polling", func(t *testing.T) {
		var polls int
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			polls++
			if polls == 1 {
				writer.Write([]byte(`{"result": "success", "msg": "", "events": [{"id": 1, "type": "heartbeat"}]}`))
				return
			}
			writer.Write([]byte(`{"result": "success", "msg": "", "events": [
				{"id": 2, "type": "message", "message": {"id": 101, "sender_email": "a@z", "type": "stream", "display_recipient": "cxdb", "subject": "t", "content": "help"}}
			]}`))
		}))
		defer server.Close()

		client := newTestClient(t, server)
		queue := &EventQueue{client: client, queueID: "q-1"}

		messages, err := queue.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if polls != 2 {
			t.Errorf("polls = %d, want 2", polls)
		}
		if len(messages) != 1 || messages[0].Content != "help" {
			t.Errorf("unexpected messages: %+v", messages)
		}
	})

	t.Run("expired queue re-registers", func(t *testing.T) {
		var registered bool
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			switch request.URL.Path {
			case "/api/v1/register":
				registered = true
				writer.Write([]byte(`{"result": "success", "msg": "", "queue_id": "q-2", "last_event_id": 7}`))
			case "/api/v1/events":
				if request.URL.Query().Get("queue_id") == "q-stale" {
					writer.WriteHeader(http.StatusBadRequest)
					writer.Write([]byte(`{"result": "error", "msg": "Bad event queue ID", "code": "BAD_EVENT_QUEUE_ID"}`))
					return
				}
				writer.Write([]byte(`{"result": "success", "msg": "", "events": [
					{"id": 8, "type": "message", "message": {"id": 102, "sender_email": "a@z", "type": "stream", "display_recipient": "cxdb", "subject": "t", "content": "sessions"}}
				]}`))
			default:
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
		}))
		defer server.Close()

		client := newTestClient(t, server)
		queue := &EventQueue{client: client, queueID: "q-stale"}

		messages, err := queue.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !registered {
			t.Error("expected re-registration")
		}
		if queue.queueID != "q-2" {
			t.Errorf("queueID = %q, want q-2", queue.queueID)
		}
		if len(messages) != 1 {
			t.Errorf("got %d messages, want 1", len(messages))
		}
	})

	t.Run("persistent failure returns error", func(t *testing.T) {
		var polls int
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			polls++
			writer.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(writer, `{"result": "error", "msg": "boom", "code": "INTERNAL"}`)
		}))
		defer server.Close()

		client := newTestClient(t, server)
		queue := &EventQueue{client: client, queueID: "q-1"}

		if _, err := queue.Next(context.Background()); err == nil {
			t.Fatal("expected error after retries exhausted")
		}
		if polls != maxPollRetries+1 {
			t.Errorf("polls = %d, want %d", polls, maxPollRetries+1)
		}
	})

	t.Run("cancelled context stops polling", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Write([]byte(`{"result": "success", "msg": "", "events": []}`))
		}))
		defer server.Close()

		client := newTestClient(t, server)
		queue := &EventQueue{client: client, queueID: "q-1"}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := queue.Next(ctx); err == nil {
			t.Fatal("expected cancellation error")
		}
	})
}
