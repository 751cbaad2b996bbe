package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"validert/internal/util"
)

func chatServer(t *testing.T, handler func(calls int32, w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" || len(body.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(calls.Add(1), w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
	})
}

func testProvider(url string) *ChatProvider {
	return NewChatProvider(ChatConfig{
		Name:          "groq",
		APIKey:        "k",
		Model:         "test-model",
		BaseURL:       url + "/v1",
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
}

func TestChatProviderGenerate(t *testing.T) {
	srv, calls := chatServer(t, func(_ int32, w http.ResponseWriter) {
		writeCompletion(w, `{"findings":[]}`)
	})

	resp, info, err := testProvider(srv.URL).Generate(context.Background(), GenerateRequest{Operation: "analyze", System: "sys", Prompt: "rapport"})
	require.NoError(t, err)
	require.Equal(t, `{"findings":[]}`, resp.Text)
	require.Equal(t, "chatcmpl-test", resp.RequestID)
	require.Equal(t, 42, resp.PromptTokens)
	require.Equal(t, ProviderInfo{Name: "groq", Model: "test-model", Key: "groq"}, info)
	require.EqualValues(t, 1, calls.Load())
}

func TestChatProviderRetriesRateLimits(t *testing.T) {
	srv, calls := chatServer(t, func(n int32, w http.ResponseWriter) {
		if n == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
			return
		}
		writeCompletion(w, `{"findings":[]}`)
	})

	_, _, err := testProvider(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "rapport"})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}

func TestChatProviderDoesNotRetryQuota(t *testing.T) {
	srv, calls := chatServer(t, func(_ int32, w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	})

	_, _, err := testProvider(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "rapport"})
	require.Error(t, err)
	require.True(t, errors.Is(err, util.ErrQuotaExhausted))
	require.EqualValues(t, 1, calls.Load())
}

func TestChatProviderMissingKey(t *testing.T) {
	_, _, err := NewOpenAIProvider("", "").Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.ErrorIs(t, err, util.ErrPermanent)
}
