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

// Package llm provides the model providers behind a single generation
// contract and the invoker that walks the primary/fallback chain.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
)

// ErrProviderNotConfigured is returned when a provider lacks the settings it needs
var ErrProviderNotConfigured = errors.New("model provider not configured")

// Params are the sampling parameters passed to every provider
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Provider generates text from a single composed prompt
type Provider interface {
	// Name identifies the provider in logs and status reports
	Name() string
	// Available reports whether the provider can currently serve requests
	Available(ctx context.Context) error
	// Generate returns the model's text for the prompt
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// NewProvider constructs the named provider from configuration. Missing
// credentials yield ErrProviderNotConfigured rather than a broken client.
func NewProvider(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ProviderOllama:
		var p *OllamaProvider
		if p, err = NewOllamaProvider(cfg.Ollama, logger); err == nil {
			provider = p
		}
	case config.ProviderOpenAI:
		var p *OpenAIProvider
		if p, err = NewOpenAIProvider(cfg.OpenAI, logger); err == nil {
			provider = p
		}
	case config.ProviderGemini:
		var p *GeminiProvider
		if p, err = NewGeminiProvider(ctx, cfg.Gemini, logger); err == nil {
			provider = p
		}
	case "", config.ProviderNone:
		return nil, ErrProviderNotConfigured
	default:
		return nil, fmt.Errorf("unknown model provider %q: %w", name, ErrProviderNotConfigured)
	}

	if err != nil {
		return nil, err
	}
	return provider, nil
}

// NewInvokerFromConfig builds the primary and fallback providers named in
// the model configuration. Providers that cannot be constructed are logged
// and reported as unconfigured by Status.
func NewInvokerFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}

	build := func(role, name string) Provider {
		if name == "" || name == config.ProviderNone {
			return nil
		}
		if !cfg.ProviderConfigured(name) {
			logger.Warn("Model provider not configured",
				zap.String("role", role),
				zap.String("provider", name))
			return nil
		}
		provider, err := NewProvider(ctx, name, cfg, logger)
		if err != nil {
			logger.Warn("Model provider unavailable",
				zap.String("role", role),
				zap.String("provider", name),
				zap.Error(err))
			return nil
		}
		logger.Info("Model provider initialized",
			zap.String("role", role),
			zap.String("provider", provider.Name()))
		return provider
	}

	primary := build("primary", cfg.Model.Provider)
	var fallback Provider
	if cfg.Model.FallbackProvider != cfg.Model.Provider {
		fallback = build("fallback", cfg.Model.FallbackProvider)
	}

	invoker := NewInvoker(primary, fallback, InvokerOptions{
		Params: Params{
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		},
		Timeout:  cfg.Model.Timeout,
		MaxChars: cfg.Model.MaxResponseChars,
	}, logger)
	invoker.primaryName = cfg.Model.Provider
	if cfg.Model.FallbackProvider != cfg.Model.Provider {
		invoker.fallbackName = cfg.Model.FallbackProvider
	}
	return invoker
}

// Cap shortens text to at most limit runes, marking the cut with "..."
func Cap(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	const marker = "..."
	runes := []rune(text)
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + marker
}
