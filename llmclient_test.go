package seiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewLLMClient_RequiresNameAPIBaseAPIKey(t *testing.T) {
	tests := []struct {
		name string
		cfg  ModelConfig
	}{
		{"missing all", ModelConfig{}},
		{"missing api_key", ModelConfig{Name: "gpt-4o", APIBase: "https://api.openai.com/v1"}},
		{"missing api_base", ModelConfig{Name: "gpt-4o", APIKey: "k"}},
		{"missing name", ModelConfig{APIBase: "https://api.openai.com/v1", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLLMClient(tt.cfg); err == nil {
				t.Fatal("expected construction error, got nil")
			} else if _, ok := err.(*ConfigError); !ok {
				t.Errorf("expected *ConfigError, got %T", err)
			}
		})
	}
}

func TestNewLLMClient_ValidConfig(t *testing.T) {
	cfg := ModelConfig{Name: "gpt-4o", APIBase: "https://api.openai.com/v1", APIKey: "k"}
	if _, err := NewLLMClient(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLLMClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Fatalf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionResponse{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "hello from the model"}}},
		})
	}))
	defer srv.Close()

	c, err := NewLLMClient(ModelConfig{Name: "gpt-4o", APIBase: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	out, err := c.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello from the model" {
		t.Errorf("got %q, want %q", out, "hello from the model")
	}
}

func TestLLMClient_Complete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	c, err := NewLLMClient(ModelConfig{Name: "gpt-4o", APIBase: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}

	_, err = c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	httpErr, ok := err.(*ErrHTTP)
	if !ok {
		t.Fatalf("expected *ErrHTTP, got %T", err)
	}
	if httpErr.Status != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want %d", httpErr.Status, http.StatusServiceUnavailable)
	}
}

func TestLLMClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionResponse{})
	}))
	defer srv.Close()

	c, _ := NewLLMClient(ModelConfig{Name: "gpt-4o", APIBase: srv.URL, APIKey: "test-key"})
	if _, err := c.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error for empty choices, got nil")
	}
}
