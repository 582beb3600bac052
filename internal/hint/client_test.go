package hint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "codearena/pkg/errors"
)

func TestGenerateContent(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-1.5-flash:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("key = %q, want secret", r.URL.Query().Get("key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "use two pointers"}},
				}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := client.GenerateContent(context.Background(), "be a tutor", []ChatMessage{
		{Role: "user", Content: "help"},
	})
	if err != nil {
		t.Fatalf("GenerateContent: %v", err)
	}
	if text != "use two pointers" {
		t.Fatalf("text = %q", text)
	}
	if captured.SystemInstruction == nil || captured.SystemInstruction.Parts[0].Text != "be a tutor" {
		t.Fatalf("system instruction = %+v", captured.SystemInstruction)
	}
	if len(captured.Contents) != 1 || captured.Contents[0].Role != "user" {
		t.Fatalf("contents = %+v", captured.Contents)
	}
}

func TestGenerateContentUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{BaseURL: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.GenerateContent(context.Background(), "", []ChatMessage{{Role: "user", Content: "help"}})
	if !pkgerrors.Is(err, pkgerrors.HintUnavailable) {
		t.Fatalf("err = %v, want HintUnavailable", err)
	}
}
