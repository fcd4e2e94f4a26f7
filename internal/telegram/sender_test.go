package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendTextPostsExpectedBody(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewSender("test-token")
	s.http.SetBaseURL(srv.URL + "/bottest-token")

	if err := s.SendText(context.Background(), "123", "hello", "Open", "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured["chat_id"] != "123" || captured["text"] != "hello" {
		t.Fatalf("unexpected body: %+v", captured)
	}
	if captured["reply_markup"] == nil {
		t.Fatal("expected reply_markup to be set")
	}
}

func TestSendPhotoSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	s := NewSender("test-token")
	s.http.SetBaseURL(srv.URL + "/bottest-token")

	err := s.SendPhoto(context.Background(), "123", "https://img", "caption", "", "")
	if err == nil {
		t.Fatal("expected an error for a failed send")
	}
}
