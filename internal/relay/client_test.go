package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelaySuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "hello there"}}}},
			},
		})
	}))
	defer upstream.Close()

	c := New(upstream.URL, "test-model")
	reply, err := c.Relay(context.Background(), "hi", "k-123")
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("expected reply text, got %q", reply)
	}

	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
	if gotKey != "k-123" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	contents, ok := gotBody["contents"].([]any)
	if !ok || len(contents) != 1 {
		t.Fatalf("unexpected request body: %v", gotBody)
	}
}

func TestRelayUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("API key not valid"))
	}))
	defer upstream.Close()

	c := New(upstream.URL, "test-model")
	_, err := c.Relay(context.Background(), "hi", "bad")

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstreamErr.StatusCode != http.StatusForbidden || upstreamErr.Body != "API key not valid" {
		t.Fatalf("unexpected upstream error: %+v", upstreamErr)
	}
}

func TestRelayMalformedReply(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no candidates", `{"candidates":[]}`},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`},
		{"empty text", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer upstream.Close()

			c := New(upstream.URL, "test-model")
			if _, err := c.Relay(context.Background(), "hi", "k"); !errors.Is(err, ErrBadReply) {
				t.Fatalf("expected ErrBadReply, got %v", err)
			}
		})
	}
}

func TestRelayContextCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer upstream.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(upstream.URL, "test-model")
	if _, err := c.Relay(ctx, "hi", "k"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
