package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"haven/api/internal/store"
)

func TestSendMessageRequiresIdentity(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/messages", `{"receiver_id":2,"text":"hi"}`, nil)
	assertErrorBody(t, rr, http.StatusUnauthorized, "User not authenticated")

	rr = doRequest(t, server, http.MethodGet, "/api/messages/history?partner_id=2", "", nil)
	assertErrorBody(t, rr, http.StatusUnauthorized, "User not authenticated")
}

func TestSendMessageValidation(t *testing.T) {
	fs := profileDirectory(store.Profile{ID: 1, Name: "alice"})
	server := NewHTTPServer(newTestService(fs), "*")
	headers := map[string]string{"X-Username": "alice"}

	for _, body := range []string{`{}`, `{"receiver_id":2}`, `{"text":"hi"}`} {
		rr := doRequest(t, server, http.MethodPost, "/api/messages", body, headers)
		assertErrorBody(t, rr, http.StatusBadRequest, "Receiver and text required")
	}
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	fs := profileDirectory(store.Profile{ID: 1, Name: "alice"})
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/messages", `{"receiver_id":99,"text":"hi"}`, map[string]string{"X-Username": "alice"})
	assertErrorBody(t, rr, http.StatusBadRequest, "Receiver not found")
}

func TestSendMessageReturnsRecord(t *testing.T) {
	fs := profileDirectory(
		store.Profile{ID: 1, Name: "alice"},
		store.Profile{ID: 2, Name: "bob"},
	)
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fs.createMessageFn = func(_ context.Context, m store.Message) (store.Message, error) {
		m.ID = 10
		m.CreatedAt = stamp
		return m, nil
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doRequest(t, server, http.MethodPost, "/api/messages", `{"receiver_id":2,"text":"hi bob"}`, map[string]string{"X-Username": "alice"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := parseObject(t, rr)
	if payload["id"] != float64(10) || payload["sender_id"] != float64(1) || payload["receiver_id"] != float64(2) {
		t.Fatalf("unexpected message payload: %v", payload)
	}
	if payload["text"] != "hi bob" || payload["created_at"] != "2024-03-01T12:00:00Z" {
		t.Fatalf("unexpected message payload: %v", payload)
	}
}

func TestMessageHistoryRequiresPartnerParam(t *testing.T) {
	fs := profileDirectory(store.Profile{ID: 1, Name: "alice"})
	server := NewHTTPServer(newTestService(fs), "*")
	headers := map[string]string{"X-Username": "alice"}

	rr := doRequest(t, server, http.MethodGet, "/api/messages/history", "", headers)
	assertErrorBody(t, rr, http.StatusBadRequest, "partner_id parameter required")

	rr = doRequest(t, server, http.MethodGet, "/api/messages/history?partner_id=bob", "", headers)
	assertErrorBody(t, rr, http.StatusBadRequest, "partner_id parameter required")
}

func TestMessageHistorySymmetric(t *testing.T) {
	// Both participants query the same conversation and must see the same
	// transcript, regardless of who asks.
	fs := profileDirectory(
		store.Profile{ID: 1, Name: "alice"},
		store.Profile{ID: 2, Name: "bob"},
	)
	conversation := []store.Message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Text: "hi bob", CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{ID: 2, SenderID: 2, ReceiverID: 1, Text: "hi alice", CreatedAt: time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)},
	}
	fs.listConversationFn = func(_ context.Context, a, b int64) ([]store.Message, error) {
		if (a == 1 && b == 2) || (a == 2 && b == 1) {
			return conversation, nil
		}
		return []store.Message{}, nil
	}
	server := NewHTTPServer(newTestService(fs), "*")

	aliceView := doRequest(t, server, http.MethodGet, "/api/messages/history?partner_id=2", "", map[string]string{"X-Username": "alice"})
	bobView := doRequest(t, server, http.MethodGet, "/api/messages/history?partner_id=1", "", map[string]string{"X-Username": "bob"})

	if aliceView.Code != http.StatusOK || bobView.Code != http.StatusOK {
		t.Fatalf("expected 200 for both views, got %d and %d", aliceView.Code, bobView.Code)
	}
	if aliceView.Body.String() != bobView.Body.String() {
		t.Fatalf("conversation views differ:\nalice=%s\nbob=%s", aliceView.Body.String(), bobView.Body.String())
	}

	items := parseList(t, aliceView)
	if len(items) != 2 || items[0]["text"] != "hi bob" || items[1]["text"] != "hi alice" {
		t.Fatalf("unexpected transcript: %v", items)
	}
}
