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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/travel-assistant/internal/assistant"
	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/llm"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")

	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8000
model:
  provider: none
logging:
  level: error
interactions:
  storage_type: file
  file_path: `+filepath.Join(t.TempDir(), "interactions.jsonl")+`
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestRootCommand_Structure(t *testing.T) {
	rootCmd := newRootCommand()

	assert.Equal(t, "assistant", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))

	serveCmd, _, err := rootCmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serveCmd.Name())
	assert.NotNil(t, serveCmd.Flags().Lookup("host"))
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))

	configCmd, _, err := rootCmd.Find([]string{"config"})
	require.NoError(t, err)
	assert.Equal(t, "config", configCmd.Name())
}

func TestConfigCommand_MasksSecrets(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("OPENAI_API_KEY", "sk-test-1234567890")
	t.Setenv("TAVILY_API_KEY", "tvly-secret-value")
	path := writeConfig(t, "server:\n  port: 9000\n")

	rootCmd := newRootCommand()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--config", path})

	require.NoError(t, rootCmd.Execute())

	output := out.String()
	assert.NotContains(t, output, "sk-test-1234567890")
	assert.NotContains(t, output, "tvly-secret-value")
	assert.Contains(t, output, "sk-test-**********")

	var printed config.Config
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, 9000, printed.Server.Port)
}

func TestServeCommand_InvalidInput(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	testCases := []struct {
		name string
		args []string
	}{
		{"port out of range", []string{"serve", "--port", "70000", "--config", writeConfig(t, "server:\n  port: 8000\n")}},
		{"missing config file", []string{"serve", "--config", filepath.Join(t.TempDir(), "missing.yaml")}},
		{"invalid provider", []string{"serve", "--config", writeConfig(t, "model:\n  provider: watson\n")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rootCmd := newRootCommand()
			rootCmd.SetOut(&bytes.Buffer{})
			rootCmd.SetErr(&bytes.Buffer{})
			rootCmd.SetArgs(tc.args)

			assert.Error(t, rootCmd.Execute())
		})
	}
}

func TestInitializeLogger(t *testing.T) {
	testCases := []struct {
		level    string
		format   string
		expected zapcore.Level
	}{
		{"debug", "json", zapcore.DebugLevel},
		{"info", "text", zapcore.InfoLevel},
		{"warn", "json", zapcore.WarnLevel},
		{"error", "text", zapcore.ErrorLevel},
		{"unknown", "json", zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level+"_"+tc.format, func(t *testing.T) {
			cfg := &config.Config{Logging: config.LoggingConfig{Level: tc.level, Format: tc.format, Output: "stdout"}}

			logger, err := initializeLogger(cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.expected))
			if tc.expected > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tc.expected-1))
			}
		})
	}
}

func TestBuildApplication_ServesRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	app, err := buildApplication(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, app.Close()) }()

	assert.False(t, app.invoker.Configured())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/plan", strings.NewReader(`{"query":"plan a week in Kyoto"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var plan struct {
		Response string `json:"response"`
		Degraded bool   `json:"degraded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.True(t, plan.Degraded)
	assert.Equal(t, assistant.DegradedMessage, plan.Response)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status       string                            `json:"status"`
		Dependencies map[string]map[string]interface{} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Dependencies, "model")
	assert.Contains(t, health.Dependencies, "web_search")
	assert.Contains(t, health.Dependencies, "interactions")
	assert.Equal(t, "healthy", health.Dependencies["interactions"]["status"])

	stats, err := app.interactions.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, serve(ctx, cfg))
}

func TestModelReachability(t *testing.T) {
	invoker := llm.NewInvoker(nil, nil, llm.InvokerOptions{}, zaptest.NewLogger(t))

	err := modelReachability(invoker)(context.Background())
	assert.ErrorIs(t, err, llm.ErrProviderNotConfigured)
}
