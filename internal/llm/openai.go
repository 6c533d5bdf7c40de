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
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

// OpenAIProvider calls an OpenAI-compatible chat completion API
type OpenAIProvider struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewOpenAIProvider creates a hosted provider. The endpoint may point at any
// OpenAI-compatible API.
func NewOpenAIProvider(cfg config.OpenAIConfig, logger *zap.Logger) (*OpenAIProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" || config.IsPlaceholder(apiKey) {
		return nil, fmt.Errorf("openai API key is empty: %w", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"); endpoint != "" {
		clientConfig.BaseURL = endpoint
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
		model:  model,
	}, nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string {
	return config.ProviderOpenAI
}

// Available reports the hosted API as reachable once credentials are present;
// reachability failures surface from Generate.
func (p *OpenAIProvider) Available(_ context.Context) error {
	return nil
}

// Generate implements Provider with a single chat completion attempt
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   params.MaxTokens,
		Temperature: float32(params.Temperature),
	}

	p.logger.Debug("Sending chat completion request",
		zap.String("model", p.model),
		zap.Int("max_tokens", params.MaxTokens))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.handleAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", resilience.NewProviderError(p.Name(), 0, errors.New("no choices returned"))
	}

	p.logger.Debug("Chat completion request completed",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}

// handleAPIError maps OpenAI client errors onto the provider taxonomy
func (p *OpenAIProvider) handleAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return resilience.NewProviderUnavailableError(p.Name(),
				fmt.Errorf("invalid API key or unauthorized access: %w", err))
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.NewProviderUnavailableError(p.Name(), err)
		default:
			return resilience.NewProviderError(p.Name(), apiErr.HTTPStatusCode,
				fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message))
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return resilience.NewProviderError(p.Name(), reqErr.HTTPStatusCode, err)
	}

	return resilience.ClassifyProviderFailure(p.Name(), fmt.Errorf("OpenAI client error: %w", err))
}
