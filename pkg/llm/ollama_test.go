package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaChat(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "42"},
			Done:            true,
			EvalCount:       5,
			PromptEvalCount: 7,
		})
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:       "llama3",
		Temperature: 0.2,
		Messages:    []Message{{Role: RoleUser, Content: "what is 6 times 7?"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "42" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}

	if got.Model != "llama3" || got.Stream {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.Options["temperature"] != 0.2 {
		t.Errorf("temperature not forwarded: %v", got.Options)
	}
}

func TestOllamaChatServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	if _, err := provider.Chat(context.Background(), ChatRequest{Model: "missing"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
