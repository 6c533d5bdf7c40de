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

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func staticChecker(status string) func(ctx context.Context) CheckResult {
	return func(ctx context.Context) CheckResult {
		return CheckResult{Status: status}
	}
}

func TestManager_Check(t *testing.T) {
	testCases := []struct {
		name     string
		statuses []string
		expected string
	}{
		{"all healthy", []string{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []string{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []string{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"no checkers", nil, StatusHealthy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manager := NewManager("travel-assistant", "1.0.0", zap.NewNop())
			for i, status := range tc.statuses {
				manager.AddCheckerFunc(string(rune('a'+i)), staticChecker(status))
			}

			result := manager.Check(context.Background())

			if result.Status != tc.expected {
				t.Errorf("Expected status %s, got %s", tc.expected, result.Status)
			}
			if len(result.Dependencies) != len(tc.statuses) {
				t.Errorf("Expected %d dependencies, got %d", len(tc.statuses), len(result.Dependencies))
			}
			if result.Service != "travel-assistant" || result.Version != "1.0.0" {
				t.Errorf("Unexpected service identity: %s %s", result.Service, result.Version)
			}
		})
	}
}

func TestManager_Timeout(t *testing.T) {
	manager := NewManager("travel-assistant", "1.0.0", nil)
	manager.SetTimeout(50 * time.Millisecond)
	manager.AddCheckerFunc("slow", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusDegraded, Error: ctx.Err().Error()}
	})

	start := time.Now()
	result := manager.Check(context.Background())

	if time.Since(start) > time.Second {
		t.Errorf("Health check did not honor timeout")
	}
	if result.Dependencies["slow"].Status != StatusDegraded {
		t.Errorf("Expected slow dependency to be degraded, got %s", result.Dependencies["slow"].Status)
	}
}

func TestProviderChecker(t *testing.T) {
	testCases := []struct {
		name       string
		configured bool
		ping       func(ctx context.Context) error
		expected   string
	}{
		{"not configured", false, nil, StatusDegraded},
		{"configured without ping", true, nil, StatusHealthy},
		{"ping ok", true, func(context.Context) error { return nil }, StatusHealthy},
		{"ping refused", true, func(context.Context) error { return errors.New("dial tcp: connection refused") }, StatusDegraded},
		{"ping error", true, func(context.Context) error { return errors.New("unexpected status 500") }, StatusDegraded},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := ProviderChecker("ollama", tc.configured, tc.ping).Check(context.Background())
			if result.Status != tc.expected {
				t.Errorf("Expected status %s, got %s", tc.expected, result.Status)
			}
			if result.Metadata["configured"] != tc.configured {
				t.Errorf("Expected configured=%v in metadata, got %v", tc.configured, result.Metadata["configured"])
			}
		})
	}
}

func TestStorageChecker(t *testing.T) {
	healthy := StorageChecker("sqlite", func(context.Context) error { return nil }).Check(context.Background())
	if healthy.Status != StatusHealthy {
		t.Errorf("Expected healthy storage, got %s", healthy.Status)
	}

	broken := StorageChecker("sqlite", func(context.Context) error { return errors.New("disk I/O error") }).Check(context.Background())
	if broken.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy storage, got %s", broken.Status)
	}
}

func TestGinHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		name         string
		status       string
		expectedCode int
	}{
		{"healthy", StatusHealthy, http.StatusOK},
		{"degraded still serves", StatusDegraded, http.StatusOK},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			manager := NewManager("travel-assistant", "1.0.0", zap.NewNop())
			manager.AddCheckerFunc("dependency", staticChecker(tc.status))

			router := gin.New()
			router.GET("/health", manager.GinHandler())

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			router.ServeHTTP(w, req)

			if w.Code != tc.expectedCode {
				t.Errorf("Expected status code %d, got %d", tc.expectedCode, w.Code)
			}

			var response Response
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to decode health response: %v", err)
			}
			if response.Status != tc.status {
				t.Errorf("Expected status %s, got %s", tc.status, response.Status)
			}
		})
	}
}

func TestIsTemporaryError(t *testing.T) {
	if !isTemporaryError(errors.New("context deadline exceeded")) {
		t.Error("Expected deadline error to be temporary")
	}
	if isTemporaryError(errors.New("invalid api key")) {
		t.Error("Expected credential error not to be temporary")
	}
	if isTemporaryError(nil) {
		t.Error("Expected nil error not to be temporary")
	}
}
