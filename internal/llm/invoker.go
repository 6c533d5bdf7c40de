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
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

const modelProviderName = "model"

// ErrEmptyResponse is returned when a provider answers with blank text
var ErrEmptyResponse = errors.New("provider returned an empty response")

// InvokerOptions bound every generation
type InvokerOptions struct {
	Params   Params
	Timeout  time.Duration
	MaxChars int
}

// Generation is the text produced by the first provider that succeeded
type Generation struct {
	Text         string
	Provider     string
	FallbackUsed bool
	Truncated    bool
	Duration     time.Duration
}

// ProviderStatus describes one configured provider slot
type ProviderStatus struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Error      string `json:"error,omitempty"`
}

// Invoker sends a prompt to the primary provider and, on failure, once to the
// fallback provider. There are no retries.
type Invoker struct {
	primary      Provider
	fallback     Provider
	primaryName  string
	fallbackName string
	opts         InvokerOptions
	logger       *zap.Logger
}

// NewInvoker creates an invoker. Either provider may be nil.
func NewInvoker(primary, fallback Provider, opts InvokerOptions, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	inv := &Invoker{
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		logger:   logger,
	}
	if primary != nil {
		inv.primaryName = primary.Name()
	}
	if fallback != nil {
		inv.fallbackName = fallback.Name()
	}
	return inv
}

// Configured reports whether at least one provider was constructed
func (inv *Invoker) Configured() bool {
	return inv != nil && (inv.primary != nil || inv.fallback != nil)
}

// Generate walks the provider chain. On failure it returns a
// *resilience.ServiceError: PROVIDER_UNAVAILABLE when no provider could be
// reached, PROVIDER_ERROR when a reachable provider failed.
func (inv *Invoker) Generate(ctx context.Context, prompt string) (*Generation, error) {
	if !inv.Configured() {
		return nil, resilience.NewProviderUnavailableError(modelProviderName, ErrProviderNotConfigured)
	}

	var (
		lastErr        error
		allUnavailable = true
	)

	for i, provider := range inv.chain() {
		start := time.Now()
		text, err := inv.attempt(ctx, provider, prompt)
		if err == nil {
			capped := Cap(text, inv.opts.MaxChars)
			generation := &Generation{
				Text:         capped,
				Provider:     provider.Name(),
				FallbackUsed: i > 0,
				Truncated:    capped != text,
				Duration:     time.Since(start),
			}
			inv.logger.Info("Model generation succeeded",
				zap.String("provider", generation.Provider),
				zap.Bool("fallback_used", generation.FallbackUsed),
				zap.Bool("truncated", generation.Truncated),
				zap.Duration("latency", generation.Duration))
			return generation, nil
		}

		inv.logger.Warn("Model provider failed",
			zap.String("provider", provider.Name()),
			zap.Int("attempt", i+1),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))

		lastErr = err
		if !resilience.IsProviderUnavailable(err) {
			allUnavailable = false
		}
	}

	if allUnavailable {
		return nil, resilience.NewProviderUnavailableError(modelProviderName, lastErr)
	}
	return nil, resilience.NewProviderError(modelProviderName, 0, lastErr)
}

func (inv *Invoker) attempt(ctx context.Context, provider Provider, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, inv.opts.Timeout)
	defer cancel()

	if err := provider.Available(attemptCtx); err != nil {
		if !resilience.IsProviderUnavailable(err) {
			err = resilience.NewProviderUnavailableError(provider.Name(), err)
		}
		return "", err
	}

	text, err := provider.Generate(attemptCtx, prompt, inv.opts.Params)
	if err != nil {
		return "", resilience.ClassifyProviderFailure(provider.Name(), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", resilience.NewProviderError(provider.Name(), 0, ErrEmptyResponse)
	}
	return text, nil
}

func (inv *Invoker) chain() []Provider {
	var providers []Provider
	if inv.primary != nil {
		providers = append(providers, inv.primary)
	}
	if inv.fallback != nil {
		providers = append(providers, inv.fallback)
	}
	return providers
}

// Status checks each configured provider for the status endpoint
func (inv *Invoker) Status(ctx context.Context) []ProviderStatus {
	slots := []struct {
		role     string
		name     string
		provider Provider
	}{
		{"primary", inv.primaryName, inv.primary},
		{"fallback", inv.fallbackName, inv.fallback},
	}

	var statuses []ProviderStatus
	for _, slot := range slots {
		if slot.provider == nil && (slot.name == "" || slot.name == config.ProviderNone) {
			continue
		}

		status := ProviderStatus{Role: slot.role, Name: slot.name}
		if slot.provider == nil {
			status.Error = ErrProviderNotConfigured.Error()
			statuses = append(statuses, status)
			continue
		}

		status.Configured = true
		if err := slot.provider.Available(ctx); err != nil {
			status.Error = err.Error()
		} else {
			status.Reachable = true
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Close releases provider resources that hold connections
func (inv *Invoker) Close() error {
	var errs []error
	for _, provider := range inv.chain() {
		if closer, ok := provider.(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	return errors.Join(errs...)
}
