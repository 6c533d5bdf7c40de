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

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/travel-assistant/internal/assistant"
	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/interactions"
	"github.com/your-org/travel-assistant/internal/llm"
	"github.com/your-org/travel-assistant/internal/resilience"
)

type fakeGenerator struct {
	text string
	err  error
}

func (f fakeGenerator) Configured() bool { return true }

func (f fakeGenerator) Generate(context.Context, string) (*llm.Generation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Generation{Text: f.text, Provider: "ollama"}, nil
}

type fakeModels []llm.ProviderStatus

func (f fakeModels) Status(context.Context) []llm.ProviderStatus { return f }

func setupRouter(t *testing.T, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	cfg := config.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}}
	return NewRouter(cfg, NewHandler(opts, logger), logger)
}

func postJSON(router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	default:
		payload, _ = json.Marshal(b)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func withGenerator(t *testing.T, generator assistant.Generator) *assistant.Assistant {
	return assistant.New(assistant.Dependencies{Generator: generator}, assistant.Options{}, zaptest.NewLogger(t))
}

func TestHandlePlan_Greeting(t *testing.T) {
	router := setupRouter(t, Options{})

	w := postJSON(router, "/api/ai/plan", PlanRequest{Query: "hi"})

	require.Equal(t, http.StatusOK, w.Code)
	var response PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, assistant.GreetingMessage, response.Response)
	assert.Equal(t, "greeting", response.Category)
	assert.False(t, response.Degraded)
	assert.NotEmpty(t, response.RequestID)
	assert.Equal(t, response.RequestID, w.Header().Get(RequestIDHeader))
}

func TestHandlePlan_Generated(t *testing.T) {
	router := setupRouter(t, Options{
		Assistant: withGenerator(t, fakeGenerator{text: "Day 1: Belém"}),
	})

	w := postJSON(router, "/api/ai/plan", map[string]interface{}{
		"query":       "plan a trip to lisbon",
		"userId":      "anonymous",
		"preferences": map[string]interface{}{"dietary": []string{"vegan"}},
	})

	require.Equal(t, http.StatusOK, w.Code)
	var response PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "Day 1: Belém", response.Response)
	assert.False(t, response.Degraded)
}

func TestHandlePlan_BadRequests(t *testing.T) {
	router := setupRouter(t, Options{})

	testCases := []struct {
		name string
		body interface{}
	}{
		{"malformed json", `{"query": `},
		{"missing query", map[string]string{"userId": "42"}},
		{"blank query", PlanRequest{Query: "   "}},
		{"wrong type", `{"query": 42}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(router, "/api/ai/plan", tc.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var response resilience.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, string(resilience.ErrorCodeBadRequest), response.Code)
			assert.NotEmpty(t, response.RequestID)
		})
	}
}

func TestHandlePlan_NoProvider(t *testing.T) {
	t.Run("degrades by default", func(t *testing.T) {
		router := setupRouter(t, Options{})

		w := postJSON(router, "/api/ai/plan", PlanRequest{Query: "plan a trip to lisbon"})

		require.Equal(t, http.StatusOK, w.Code)
		var response PlanResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, assistant.DegradedMessage, response.Response)
		assert.True(t, response.Degraded)
	})

	t.Run("strict mode reports configuration", func(t *testing.T) {
		router := setupRouter(t, Options{StrictProviderCheck: true})

		w := postJSON(router, "/api/ai/plan", PlanRequest{Query: "plan a trip to lisbon"})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response resilience.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, string(resilience.ErrorCodeServiceUnavailable), response.Code)
		assert.Contains(t, response.Error, "model provider")
	})

	t.Run("model failure still answers", func(t *testing.T) {
		router := setupRouter(t, Options{
			Assistant: withGenerator(t, fakeGenerator{err: resilience.NewProviderUnavailableError("model", nil)}),
		})

		w := postJSON(router, "/api/ai/plan", PlanRequest{Query: "budget tips"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"degraded":true`)
	})
}

func TestHandlePlan_EchoesRequestID(t *testing.T) {
	router := setupRouter(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/ai/plan", bytes.NewBufferString(`{"query":"thanks"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"request_id":"req-123"`)
}

func TestHandlePlan_RecordsInteraction(t *testing.T) {
	interactionLogger, err := interactions.NewLogger(config.InteractionsConfig{
		StorageType: interactions.StorageTypeFile,
		FilePath:    filepath.Join(t.TempDir(), "interactions.jsonl"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	router := setupRouter(t, Options{Interactions: interactionLogger})
	postJSON(router, "/api/ai/plan", PlanRequest{Query: "hello"})
	postJSON(router, "/api/ai/plan", PlanRequest{Query: "plan a trip to rome"})

	stats, err := interactionLogger.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Degraded)
	assert.Equal(t, 1, stats.ByCategory["greeting"])
}

func TestHandleStatus(t *testing.T) {
	router := setupRouter(t, Options{
		Models: fakeModels{
			{Role: "primary", Name: "ollama", Configured: true, Reachable: false, Error: "connection refused"},
			{Role: "fallback", Name: "openai", Configured: true, Reachable: true},
		},
		SearchConfigured: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ai/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Model struct {
			Configured bool                 `json:"configured"`
			Reachable  bool                 `json:"reachable"`
			Providers  []llm.ProviderStatus `json:"providers"`
		} `json:"model"`
		WebSearch struct {
			Configured bool `json:"configured"`
		} `json:"web_search"`
		Backend struct {
			Configured bool `json:"configured"`
		} `json:"backend"`
		Interactions interactions.Stats `json:"interactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	assert.True(t, response.Model.Configured)
	assert.True(t, response.Model.Reachable)
	assert.Len(t, response.Model.Providers, 2)
	assert.True(t, response.WebSearch.Configured)
	assert.False(t, response.Backend.Configured)
	assert.Equal(t, interactions.StorageTypeNone, response.Interactions.StorageType)
}

func TestHandlePacking(t *testing.T) {
	router := setupRouter(t, Options{})

	w := postJSON(router, "/api/ai/packing", PackingRequest{Location: "Tokyo"})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Checklist []string `json:"checklist"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Checklist, 10)

	w = postJSON(router, "/api/ai/packing", PackingRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRestaurants(t *testing.T) {
	router := setupRouter(t, Options{})

	w := postJSON(router, "/api/ai/restaurants", RestaurantRequest{Location: "Rome", Dietary: []string{"vegetarian"}})
	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Response string `json:"response"`
		Degraded bool   `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Degraded)
	assert.Contains(t, response.Response, "Popular dining options in Rome:")
	assert.Contains(t, response.Response, "vegetarian")
}

func TestHealthAndRoot(t *testing.T) {
	router := setupRouter(t, Options{Version: "1.2.3"})

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	router := setupRouter(t, Options{})
	router.GET("/boom", func(*gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(resilience.ErrorCodeInternalError))
}

func TestCORS(t *testing.T) {
	router := setupRouter(t, Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/ai/plan", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/ai/plan", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
