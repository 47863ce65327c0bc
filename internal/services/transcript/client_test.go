package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tweetloom/internal/services"
)

func TestClientTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req transcriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.VideoID != "abc123" {
			t.Fatalf("unexpected video id %q", req.VideoID)
		}
		if req.Language != "en" {
			t.Fatalf("unexpected language %q", req.Language)
		}
		_ = json.NewEncoder(w).Encode(transcriptResponse{Text: "  hello world  "})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret", Language: "en"})
	text, err := client.Transcribe(context.Background(), "abc123", "https://youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestClientTranscribeRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(transcriptResponse{Text: "after retries"})
	}))
	defer server.Close()

	client := NewClient(
		Config{BaseURL: server.URL},
		WithRetryBackoff(time.Millisecond, 2*time.Millisecond),
	)
	text, err := client.Transcribe(context.Background(), "vid", "")
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if text != "after retries" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClientTranscribeFailureTagsError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Transcribe(context.Background(), "missing", "")
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 should not be retried, got %d calls", calls.Load())
	}
}

func TestClientTranscribeServiceErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transcriptResponse{Error: "audio track missing"})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, WithRetryMaxAttempts(1))
	_, err := client.Transcribe(context.Background(), "vid", "")
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestClientTranscribeEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transcriptResponse{Text: "   "})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, WithRetryMaxAttempts(1))
	if _, err := client.Transcribe(context.Background(), "vid", ""); err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestClientTranscribeRequiresVideoID(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), "  ", "")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
