// Copyright 2026 The cxdb Authors
// SPDX-License-Identifier: Apache-2.0

package zulip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		ServerURL: server.URL,
		Email:     "cxdb-bot@zulip.local",
		APIKey:    "test-key",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		cases := []ClientConfig{
			{},
			{ServerURL: "http://z"},
			{ServerURL: "http://z", Email: "bot@z"},
		}
		for i, config := range cases {
			if _, err := NewClient(config); err == nil {
				t.Errorf("case %d: expected error", i)
			}
		}
	})

	t.Run("valid", func(t *testing.T) {
		client, err := NewClient(ClientConfig{ServerURL: "http://z", Email: "bot@z", APIKey: "k"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.Email() != "bot@z" {
			t.Errorf("Email() = %q", client.Email())
		}
	})
}

func TestSendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/messages" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		username, password, ok := request.BasicAuth()
		if !ok || username != "cxdb-bot@zulip.local" || password != "test-key" {
			t.Error("missing or wrong basic auth")
		}
		if err := request.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if request.PostForm.Get("type") != "stream" {
			t.Errorf("type = %q", request.PostForm.Get("type"))
		}
		if request.PostForm.Get("to") != "cxdb" || request.PostForm.Get("topic") != "[CTX-1] triage" {
			t.Errorf("unexpected destination: %v", request.PostForm)
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.Write([]byte(`{"result": "success", "msg": "", "id": 99}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	messageID, err := client.SendMessage(context.Background(), "cxdb", "[CTX-1] triage", "hello")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if messageID != 99 {
		t.Errorf("messageID = %d, want 99", messageID)
	}
}

func TestAddReaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/messages/42/reactions" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if err := request.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if request.PostForm.Get("emoji_name") != "eyes" {
			t.Errorf("emoji_name = %q", request.PostForm.Get("emoji_name"))
		}
		writer.Write([]byte(`{"result": "success", "msg": ""}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.AddReaction(context.Background(), 42, "eyes"); err != nil {
		t.Fatalf("AddReaction failed: %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/v1/users/me/subscriptions" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if err := request.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		var subscriptions []subscription
		if err := json.Unmarshal([]byte(request.PostForm.Get("subscriptions")), &subscriptions); err != nil {
			t.Fatalf("parsing subscriptions: %v", err)
		}
		if len(subscriptions) != 1 || subscriptions[0].Name != "cxdb" {
			t.Errorf("unexpected subscriptions: %+v", subscriptions)
		}
		writer.Write([]byte(`{"result": "success", "msg": ""}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.Subscribe(context.Background(), "cxdb", "Conversation branching"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusBadRequest)
			writer.Write([]byte(`{"result": "error", "msg": "Invalid API key", "code": "INVALID_API_KEY"}`))
		}))
		defer server.Close()

		client := newTestClient(t, server)
		_, err := client.SendMessage(context.Background(), "cxdb", "general", "hi")
		if err == nil {
			t.Fatal("expected error")
		}
		if !IsAPIError(err, ErrCodeInvalidAPIKey) {
			t.Errorf("expected INVALID_API_KEY, got: %v", err)
		}
	})

	t.Run("error message format", func(t *testing.T) {
		apiErr := &APIError{Code: ErrCodeBadEventQueueID, Msg: "Bad event queue ID", StatusCode: 400}
		want := "zulip: BAD_EVENT_QUEUE_ID (400): Bad event queue ID"
		if apiErr.Error() != want {
			t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
		}
	})
}

func TestStreamNameUnmarshal(t *testing.T) {
	t.Run("stream message", func(t *testing.T) {
		var message Message
		raw := `{"id": 1, "type": "stream", "display_recipient": "cxdb", "subject": "general"}`
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if message.Stream.String() != "cxdb" {
			t.Errorf("Stream = %q, want cxdb", message.Stream)
		}
	})

	t.Run("private message recipient list", func(t *testing.T) {
		var message Message
		raw := `{"id": 2, "type": "private", "display_recipient": [{"email": "a@z"}]}`
		if err := json.Unmarshal([]byte(raw), &message); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if message.Stream != "" {
			t.Errorf("Stream = %q, want empty", message.Stream)
		}
	})
}
