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

package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

const (
	// InternalKeyHeader carries the shared credential for backend-to-backend calls
	InternalKeyHeader = "x-internal-api-key"

	// AnonymousUserID is the identity the web client sends when logged out
	AnonymousUserID = "anonymous"

	maxBodyBytes = 1 << 20
)

// Client fetches booking snapshots from the backend service
type Client struct {
	endpoint    string
	internalKey string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a booking client from backend configuration
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	endpoint := ""
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		path := cfg.BookingsPath
		if path == "" {
			path = "/bookings"
		}
		endpoint = base + "/" + strings.TrimLeft(path, "/")
	}

	return &Client{
		endpoint:    endpoint,
		internalKey: cfg.InternalAPIKey,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Configured reports whether a backend URL is set
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// Fetch returns the user's bookings. It never fails: a missing user, an
// unconfigured or unreachable backend and malformed replies all yield nil.
func (c *Client) Fetch(ctx context.Context, userID string) []Booking {
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == AnonymousUserID || !c.Configured() {
		return nil
	}

	bookings, err := c.fetch(ctx, userID)
	if err != nil {
		c.logger.Warn("Booking fetch failed, continuing without booking context",
			zap.String("user_id", userID),
			zap.Bool("provider_unavailable", resilience.IsProviderUnavailable(err)),
			zap.Error(err))
		return nil
	}

	c.logger.Debug("Fetched bookings",
		zap.String("user_id", userID),
		zap.Int("count", len(bookings)))
	return bookings
}

func (c *Client) fetch(ctx context.Context, userID string) ([]Booking, error) {
	reqURL := c.endpoint + "?" + url.Values{"userId": {userID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, resilience.NewProviderUnavailableError("backend", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.internalKey != "" {
		req.Header.Set(InternalKeyHeader, c.internalKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.ClassifyProviderFailure("backend", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.ClassifyProviderFailure("backend", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewProviderError("backend", resp.StatusCode,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	bookings, err := decodeBookings(body)
	if err != nil {
		return nil, resilience.NewProviderError("backend", resp.StatusCode, err)
	}
	return bookings, nil
}

// decodeBookings accepts a bare array or an object wrapping it under "bookings"
func decodeBookings(body []byte) ([]Booking, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	if body[0] == '[' {
		var bookings []Booking
		if err := json.Unmarshal(body, &bookings); err != nil {
			return nil, fmt.Errorf("failed to decode bookings: %w", err)
		}
		return bookings, nil
	}

	var wrapped struct {
		Bookings []Booking `json:"bookings"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return wrapped.Bookings, nil
}
