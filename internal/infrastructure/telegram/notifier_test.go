package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("test-token", "42").WithAPIBase(server.URL)
	n.client = server.Client()

	if err := n.PublishDigest(context.Background(), "planned 12 queries"); err != nil {
		t.Fatalf("PublishDigest: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotChat != "42" {
		t.Fatalf("unexpected chat id: %s", gotChat)
	}
	if gotText != "planned 12 queries" {
		t.Fatalf("unexpected text: %s", gotText)
	}
}

func TestPublishDigestServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewNotifier("test-token", "42").WithAPIBase(server.URL)
	n.client = server.Client()

	if err := n.PublishDigest(context.Background(), "digest"); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	n := NewNotifier("", "")
	if err := n.PublishDigest(context.Background(), "digest"); err == nil {
		t.Fatalf("expected misconfiguration error")
	}
}
