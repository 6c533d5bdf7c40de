// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

func newOllamaServer(t *testing.T, tagsStatus int, generate http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(tagsStatus)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama2"}]}`))
	})
	mux.HandleFunc("/api/generate", generate)
	return httptest.NewServer(mux)
}

func newOllama(t *testing.T, baseURL string) *OllamaProvider {
	t.Helper()
	provider, err := NewOllamaProvider(config.OllamaConfig{
		BaseURL:      baseURL,
		Model:        "llama2",
		PingTimeout: 500 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return provider
}

func TestOllamaProvider_Generate(t *testing.T) {
	server := newOllamaServer(t, http.StatusOK, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaGenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		assert.Equal(t, "llama2", req.Model)
		assert.Equal(t, "plan my day", req.Prompt)
		assert.False(t, req.Stream)
		assert.Equal(t, 0.7, req.Options.Temperature)
		assert.Equal(t, 256, req.Options.NumPredict)

		_, _ = w.Write([]byte(`{"model":"llama2","response":"Day 1: Belém","done":true}`))
	})
	defer server.Close()

	provider := newOllama(t, server.URL)
	assert.Equal(t, config.ProviderOllama, provider.Name())
	require.NoError(t, provider.Available(context.Background()))

	text, err := provider.Generate(context.Background(), "plan my day", Params{Temperature: 0.7, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, "Day 1: Belém", text)
}

func TestOllamaProvider_Failures(t *testing.T) {
	t.Run("model missing", func(t *testing.T) {
		server := newOllamaServer(t, http.StatusOK, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model 'llama2' not found"}`))
		})
		defer server.Close()

		_, err := newOllama(t, server.URL).Generate(context.Background(), "hi", Params{})
		require.Error(t, err)
		assert.True(t, resilience.IsProviderError(err))
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("malformed payload", func(t *testing.T) {
		server := newOllamaServer(t, http.StatusOK, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		defer server.Close()

		_, err := newOllama(t, server.URL).Generate(context.Background(), "hi", Params{})
		assert.True(t, resilience.IsProviderError(err))
	})

	t.Run("tag listing fails", func(t *testing.T) {
		server := newOllamaServer(t, http.StatusInternalServerError, func(http.ResponseWriter, *http.Request) {})
		defer server.Close()

		err := newOllama(t, server.URL).Available(context.Background())
		assert.True(t, resilience.IsProviderUnavailable(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		provider := newOllama(t, "http://127.0.0.1:1")
		assert.True(t, resilience.IsProviderUnavailable(provider.Available(context.Background())))

		_, err := provider.Generate(context.Background(), "hi", Params{})
		assert.True(t, resilience.IsProviderUnavailable(err))
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := NewOllamaProvider(config.OllamaConfig{}, nil)
		assert.ErrorIs(t, err, ErrProviderNotConfigured)
	})
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.EqualValues(t, 128, req["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Visit the Colosseum."},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(config.OpenAIConfig{
		APIKey:   "sk-test", // pragma: allowlist secret
		Endpoint: server.URL + "/v1",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, provider.Available(context.Background()))

	text, err := provider.Generate(context.Background(), "rome ideas", Params{Temperature: 0.7, MaxTokens: 128})
	require.NoError(t, err)
	assert.Equal(t, "Visit the Colosseum.", text)
}

func TestOpenAIProvider_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name              string
		status            int
		expectUnavailable bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusInternalServerError, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			}))
			defer server.Close()

			provider, err := NewOpenAIProvider(config.OpenAIConfig{APIKey: "sk-test", Endpoint: server.URL}, zaptest.NewLogger(t))
			require.NoError(t, err)

			_, err = provider.Generate(context.Background(), "hi", Params{})
			require.Error(t, err)
			assert.Equal(t, tc.expectUnavailable, resilience.IsProviderUnavailable(err))
			assert.Equal(t, !tc.expectUnavailable, resilience.IsProviderError(err))
		})
	}
}

func TestOpenAIProvider_NotConfigured(t *testing.T) {
	for _, key := range []string{"", "your_openai_api_key_here"} {
		_, err := NewOpenAIProvider(config.OpenAIConfig{APIKey: key}, nil)
		assert.ErrorIs(t, err, ErrProviderNotConfigured)
	}
}

func TestGeminiProvider_NotConfigured(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), config.GeminiConfig{}, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestGeminiResponseText(t *testing.T) {
	text, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Day 1: "), genai.Text("Shibuya")}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Day 1: Shibuya", text)

	_, err = responseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	_, err = responseText(nil)
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	cfg := &config.Config{
		Ollama: config.OllamaConfig{BaseURL: "http://localhost:11434"},
	}

	provider, err := NewProvider(context.Background(), "Ollama", cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOllama, provider.Name())

	provider, err = NewProvider(context.Background(), config.ProviderOpenAI, cfg, nil)
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))
	assert.Nil(t, provider)

	_, err = NewProvider(context.Background(), config.ProviderNone, cfg, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = NewProvider(context.Background(), "llamafile", cfg, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCap(t *testing.T) {
	assert.Equal(t, "short", Cap("short", 10))
	assert.Equal(t, "abcdefg...", Cap("abcdefghijklmnop", 10))
	assert.Equal(t, "ñññ...", Cap("ññññññññ", 6))
	assert.Equal(t, "unbounded", Cap("unbounded", 0))
	assert.Equal(t, "ab", Cap("abcdef", 2))
	assert.Equal(t, "abc", Cap("abcdef", 3))
	assert.Equal(t, "a...", Cap("abcdef", 4))
	assert.Equal(t, "ñ", Cap("ññññ", 1))
}
