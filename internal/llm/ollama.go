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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

const maxResponseBytes = 4 << 20

// OllamaProvider talks to a local Ollama inference endpoint
type OllamaProvider struct {
	baseURL      string
	model        string
	pingTimeout time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider
func NewOllamaProvider(cfg config.OllamaConfig, logger *zap.Logger) (*OllamaProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ollama base URL is empty: %w", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 2 * time.Second
	}

	model := cfg.Model
	if model == "" {
		model = "llama2"
	}

	return &OllamaProvider{
		baseURL:      baseURL,
		model:        model,
		pingTimeout: pingTimeout,
		httpClient:   &http.Client{},
		logger:       logger,
	}, nil
}

// Name implements Provider
func (p *OllamaProvider) Name() string {
	return config.ProviderOllama
}

// Available pings the tag listing endpoint with a short timeout
func (p *OllamaProvider) Available(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pingCtx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return resilience.NewProviderUnavailableError(p.Name(), err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return resilience.NewProviderUnavailableError(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return resilience.NewProviderUnavailableError(p.Name(),
			fmt.Errorf("tag listing returned status %d", resp.StatusCode))
	}
	return nil
}

// Generate implements Provider using a single non-streaming completion
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", resilience.NewProviderUnavailableError(p.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debug("Sending generate request to Ollama",
		zap.String("model", p.model),
		zap.Int("prompt_chars", len(prompt)))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", resilience.ClassifyProviderFailure(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", resilience.ClassifyProviderFailure(p.Name(), err)
	}

	var decoded ollamaGenerateResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("ollama returned status %d", resp.StatusCode)
		if decodeErr == nil && decoded.Error != "" {
			message += ": " + decoded.Error
		}
		return "", resilience.NewProviderError(p.Name(), resp.StatusCode, errors.New(message))
	}
	if decodeErr != nil {
		return "", resilience.NewProviderError(p.Name(), resp.StatusCode,
			fmt.Errorf("failed to decode ollama response: %w", decodeErr))
	}
	if decoded.Error != "" {
		return "", resilience.NewProviderError(p.Name(), resp.StatusCode, errors.New(decoded.Error))
	}

	return decoded.Response, nil
}
