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

// Package resilience holds the error taxonomy shared by the provider clients,
// the fallback chain and the HTTP boundary.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse represents the standard error response format across all APIs
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode represents standard error codes used across the system
type ErrorCode string

const (
	// Client errors (4xx)
	ErrorCodeBadRequest ErrorCode = "BAD_REQUEST"

	// Server errors (5xx)
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Provider errors. A provider is unavailable when it is unreachable or
	// misconfigured, and in error when it answered with a failure.
	ErrorCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorCodeProviderError       ErrorCode = "PROVIDER_ERROR"
)

// ServiceError represents an error with additional context for proper handling
type ServiceError struct {
	Message    string
	Code       ErrorCode
	StatusCode int
	Internal   error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Internal
}

// Provider returns the provider name recorded on the error, if any.
func (e *ServiceError) Provider() string {
	if e.Context == nil {
		return ""
	}
	name, _ := e.Context["provider"].(string)
	return name
}

// ToErrorResponse converts a ServiceError to an ErrorResponse
func (e *ServiceError) ToErrorResponse(requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     e.Message,
		Code:      string(e.Code),
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

// NewServiceError creates a new ServiceError with the given parameters
func NewServiceError(message string, code ErrorCode, statusCode int, internal error) *ServiceError {
	return &ServiceError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Internal:   internal,
		Context:    make(map[string]interface{}),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeBadRequest, http.StatusBadRequest, internal)
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeInternalError, http.StatusInternalServerError, internal)
}

// NewServiceUnavailableError creates a new service unavailable error
func NewServiceUnavailableError(message string, internal error) *ServiceError {
	return NewServiceError(message, ErrorCodeServiceUnavailable, http.StatusServiceUnavailable, internal)
}

// NewProviderUnavailableError reports a provider that could not be reached or is not configured
func NewProviderUnavailableError(provider string, internal error) *ServiceError {
	err := NewServiceError(
		fmt.Sprintf("provider %s is unavailable", provider),
		ErrorCodeProviderUnavailable, http.StatusServiceUnavailable, internal)
	err.Context["provider"] = provider
	return err
}

// NewProviderError reports a reachable provider that answered with a failure
func NewProviderError(provider string, statusCode int, internal error) *ServiceError {
	err := NewServiceError(
		fmt.Sprintf("provider %s returned an error", provider),
		ErrorCodeProviderError, http.StatusBadGateway, internal)
	err.Context["provider"] = provider
	if statusCode > 0 {
		err.Context["status_code"] = statusCode
	}
	return err
}

// AsServiceError checks if an error is or wraps a ServiceError
func AsServiceError(err error, target **ServiceError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}

// IsProviderUnavailable reports whether err is a ProviderUnavailable failure
func IsProviderUnavailable(err error) bool {
	var serviceErr *ServiceError
	return AsServiceError(err, &serviceErr) && serviceErr.Code == ErrorCodeProviderUnavailable
}

// IsProviderError reports whether err is a ProviderError failure
func IsProviderError(err error) bool {
	var serviceErr *ServiceError
	return AsServiceError(err, &serviceErr) && serviceErr.Code == ErrorCodeProviderError
}

// ClassifyProviderFailure maps a transport or client error raised while calling
// a provider onto the provider taxonomy. Errors that already carry a provider
// code are returned unchanged.
func ClassifyProviderFailure(provider string, err error) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if AsServiceError(err, &serviceErr) &&
		(serviceErr.Code == ErrorCodeProviderUnavailable || serviceErr.Code == ErrorCodeProviderError) {
		return serviceErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProviderUnavailableError(provider, err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return NewProviderUnavailableError(provider, err)
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset"):
		return NewProviderUnavailableError(provider, err)
	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "network is unreachable"):
		return NewProviderUnavailableError(provider, err)
	default:
		return NewProviderError(provider, 0, err)
	}
}

// ErrorHandler provides utilities for handling and logging errors
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger}
}

// LogError logs an error with appropriate context
func (eh *ErrorHandler) LogError(err error, operation string, fields ...zap.Field) {
	if err == nil {
		return
	}

	if eh == nil || eh.logger == nil {
		return
	}

	logFields := []zap.Field{
		zap.String("operation", operation),
		zap.Error(err),
	}
	logFields = append(logFields, fields...)

	var serviceErr *ServiceError
	if AsServiceError(err, &serviceErr) {
		logFields = append(logFields,
			zap.String("error_code", string(serviceErr.Code)),
			zap.Int("status_code", serviceErr.StatusCode))
		if provider := serviceErr.Provider(); provider != "" {
			logFields = append(logFields, zap.String("provider", provider))
		}
	}

	eh.logger.Warn("Operation failed", logFields...)
}
