package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"scan2epub/internal/config"
)

func testLLMSettings(endpoint string) config.LLMSettings {
	return config.LLMSettings{
		Endpoint:          endpoint + "/v1",
		APIKey:            "test-key",
		Model:             "gpt-4o-mini",
		MaxTokensPerChunk: 1000,
		MaxTokensResponse: 1000,
		MaxRetries:        3,
		RetryDelay:        time.Millisecond,
		RequestTimeout:    5 * time.Second,
	}
}

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(body)
}

func TestCleanerClean(t *testing.T) {
	t.Run("cleans a single chunk", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var req struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
				t.Errorf("expected system+user messages, got %d", len(req.Messages))
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(chatResponse("  tiszta szöveg  ")))
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		c.sleep = func(time.Duration) {}

		got, err := c.Clean(context.Background(), "piszkos szöveg")
		if err != nil {
			t.Fatalf("clean: %v", err)
		}
		if got != "tiszta szöveg" {
			t.Errorf("got %q", got)
		}
		if c.Degraded() != 0 {
			t.Errorf("degraded = %d, want 0", c.Degraded())
		}
	})

	t.Run("degrades to original after retries", func(t *testing.T) {
		var calls int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		c.sleep = func(time.Duration) {}

		got, err := c.Clean(context.Background(), "eredeti szöveg")
		if err != nil {
			t.Fatalf("clean should degrade, not fail: %v", err)
		}
		if got != "eredeti szöveg" {
			t.Errorf("got %q, want original text back", got)
		}
		if n := atomic.LoadInt32(&calls); n != 3 {
			t.Errorf("calls = %d, want 3", n)
		}
		if c.Degraded() != 1 {
			t.Errorf("degraded = %d, want 1", c.Degraded())
		}
	})

	t.Run("empty text makes no calls", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected call for empty input")
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		got, err := c.Clean(context.Background(), "   ")
		if err != nil {
			t.Fatalf("clean: %v", err)
		}
		if got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})

	t.Run("cancellation aborts instead of degrading", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cancel()
			http.Error(w, "slow", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		c.sleep = func(time.Duration) {}

		if _, err := c.Clean(ctx, "szöveg"); err == nil {
			t.Fatal("expected error on cancellation")
		}
	})
}

func TestCleanerPreflight(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(chatResponse("pong")))
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		if err := c.Preflight(context.Background()); err != nil {
			t.Errorf("preflight: %v", err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := NewCleaner(testLLMSettings(srv.URL), "", zerolog.Nop())
		if err := c.Preflight(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}
