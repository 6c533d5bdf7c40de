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

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServiceError(t *testing.T) {
	internal := errors.New("internal error")
	serviceErr := NewServiceError("user message", ErrorCodeInternalError, http.StatusInternalServerError, internal)

	assert.Equal(t, "user message: internal error", serviceErr.Error())
	assert.Equal(t, internal, serviceErr.Unwrap())
	assert.Equal(t, ErrorCodeInternalError, serviceErr.Code)
	assert.Equal(t, http.StatusInternalServerError, serviceErr.StatusCode)

	bare := NewBadRequestError("query is required", nil)
	assert.Equal(t, "query is required", bare.Error())
}

func TestServiceErrorConvenience(t *testing.T) {
	internal := errors.New("internal")

	tests := []struct {
		name         string
		err          *ServiceError
		expectCode   ErrorCode
		expectStatus int
	}{
		{"bad request", NewBadRequestError("bad", internal), ErrorCodeBadRequest, http.StatusBadRequest},
		{"internal", NewInternalError("boom", internal), ErrorCodeInternalError, http.StatusInternalServerError},
		{"unavailable", NewServiceUnavailableError("down", internal), ErrorCodeServiceUnavailable, http.StatusServiceUnavailable},
		{"provider unavailable", NewProviderUnavailableError("ollama", internal), ErrorCodeProviderUnavailable, http.StatusServiceUnavailable},
		{"provider error", NewProviderError("openai", 500, internal), ErrorCodeProviderError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectCode, tt.err.Code)
			assert.Equal(t, tt.expectStatus, tt.err.StatusCode)
		})
	}
}

func TestProviderErrorsCarryProvider(t *testing.T) {
	err := NewProviderError("gemini", http.StatusTooManyRequests, errors.New("quota"))

	assert.Equal(t, "gemini", err.Provider())
	assert.Equal(t, http.StatusTooManyRequests, err.Context["status_code"])

	wrapped := fmt.Errorf("generate: %w", err)
	assert.True(t, IsProviderError(wrapped))
	assert.False(t, IsProviderUnavailable(wrapped))

	var target *ServiceError
	require.True(t, AsServiceError(wrapped, &target))
	assert.Equal(t, "gemini", target.Provider())
}

func TestClassifyProviderFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, ErrorCodeProviderUnavailable},
		{"wrapped deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), ErrorCodeProviderUnavailable},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ErrorCodeProviderUnavailable},
		{"unknown host", errors.New("dial tcp: lookup ollama: no such host"), ErrorCodeProviderUnavailable},
		{"malformed payload", errors.New("invalid character '<' looking for beginning of value"), ErrorCodeProviderError},
		{"already typed", NewProviderError("openai", 401, nil), ErrorCodeProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyProviderFailure("ollama", tt.err)
			require.NotNil(t, classified)
			assert.Equal(t, tt.expectCode, classified.Code)
		})
	}

	assert.Nil(t, ClassifyProviderFailure("ollama", nil))
}

func TestErrorResponseShape(t *testing.T) {
	resp := NewBadRequestError("query is required", nil).ToErrorResponse("req-1")

	assert.Equal(t, "query is required", resp.Error)
	assert.Equal(t, string(ErrorCodeBadRequest), resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestErrorHandlerLogError(t *testing.T) {
	handler := NewErrorHandler(zaptest.NewLogger(t))

	// Must not panic on nil errors or nil handlers.
	handler.LogError(nil, "noop")
	handler.LogError(NewProviderUnavailableError("ollama", errors.New("refused")), "generate")

	var nilHandler *ErrorHandler
	nilHandler.LogError(errors.New("ignored"), "noop")
}
