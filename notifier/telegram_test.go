package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("test-token")
	client.SetBaseURL(server.URL)
	return client, server
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": map[string]interface{}{}})
	})
	defer server.Close()

	if err := client.SendMessage(context.Background(), "12345", "привет"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "12345" || gotPayload["text"] != "привет" {
		t.Errorf("payload = %v", gotPayload)
	}
	if gotPayload["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v, want Markdown", gotPayload["parse_mode"])
	}
}

func TestSendMessageBlockedRecipient(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  403,
			"description": "Forbidden: bot was blocked by the user",
		})
	})
	defer server.Close()

	err := client.SendMessage(context.Background(), "12345", "привет")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsRecipientBlocked(err) {
		t.Errorf("IsRecipientBlocked(%v) = false, want true", err)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":          false,
			"error_code":  400,
			"description": "Bad Request: chat not found",
		})
	})
	defer server.Close()

	err := client.SendMessage(context.Background(), "12345", "привет")
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsRecipientBlocked(err) {
		t.Error("a 400 must not classify as blocked")
	}
}

func TestGetMe(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":     true,
			"result": map[string]interface{}{"id": 42, "username": "kvartaly_bot", "first_name": "Монитор"},
		})
	})
	defer server.Close()

	me, err := client.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.ID != 42 || me.Username != "kvartaly_bot" {
		t.Errorf("me = %+v", me)
	}
}

func TestGetUpdates(t *testing.T) {
	var gotPayload map[string]interface{}

	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok": true,
			"result": []map[string]interface{}{
				{
					"update_id": 7,
					"message": map[string]interface{}{
						"message_id": 1,
						"chat":       map[string]interface{}{"id": 555},
						"text":       "/status",
					},
				},
			},
		})
	})
	defer server.Close()

	updates, err := client.GetUpdates(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("GetUpdates: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].UpdateID != 7 || updates[0].Message.Chat.ID != 555 || updates[0].Message.Text != "/status" {
		t.Errorf("update = %+v", updates[0])
	}
	if gotPayload["offset"] != float64(5) {
		t.Errorf("offset = %v, want 5", gotPayload["offset"])
	}
}
