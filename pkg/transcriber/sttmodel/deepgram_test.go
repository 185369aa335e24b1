package sttmodel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeepgramModelParsesTranscriptFromResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			t.Errorf("expected token auth header, got %q", r.Header.Get("Authorization"))
		}
		resp := map[string]any{
			"results": map[string]any{
				"channels": []map[string]any{
					{"alternatives": []map[string]any{{"transcript": "hello from deepgram"}}},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	model := NewDeepgramModel("test-key")
	model.client = server.Client()
	model.url = server.URL

	result, err := model.Transcribe(make([]float32, 100), 16000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello from deepgram" {
		t.Errorf("expected 'hello from deepgram', got %q", result.Text)
	}
}

func TestDeepgramModelReturnsBlankWhenNoChannels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"channels": []any{}}})
	}))
	defer server.Close()

	model := NewDeepgramModel("test-key")
	model.client = server.Client()
	model.url = server.URL

	result, err := model.Transcribe(make([]float32, 100), 16000, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "" {
		t.Errorf("expected blank text, got %q", result.Text)
	}
}
