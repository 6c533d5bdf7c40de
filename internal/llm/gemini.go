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
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

// GeminiProvider calls the Google Gemini API
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiProvider creates a hosted Gemini provider
func NewGeminiProvider(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*GeminiProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" || config.IsPlaceholder(apiKey) {
		return nil, fmt.Errorf("gemini API key is empty: %w", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Name implements Provider
func (p *GeminiProvider) Name() string {
	return config.ProviderGemini
}

// Available reports the hosted API as reachable once a client exists
func (p *GeminiProvider) Available(_ context.Context) error {
	if p.client == nil {
		return resilience.NewProviderUnavailableError(p.Name(), ErrProviderNotConfigured)
	}
	return nil
}

// Generate implements Provider
func (p *GeminiProvider) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(float32(params.Temperature))
	if params.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(params.MaxTokens))
	}

	p.logger.Debug("Sending generate request to Gemini",
		zap.String("model", p.model),
		zap.Int("max_tokens", params.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", resilience.NewProviderError(p.Name(), 0, err)
		}
		return "", resilience.ClassifyProviderFailure(p.Name(), fmt.Errorf("gemini generate error: %w", err))
	}

	text, err := responseText(resp)
	if err != nil {
		return "", resilience.NewProviderError(p.Name(), 0, err)
	}
	return text, nil
}

// Close releases the underlying client
func (p *GeminiProvider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no content")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}
