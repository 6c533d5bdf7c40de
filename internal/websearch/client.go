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

// Package websearch queries a Tavily-compatible search API for live local
// information about a destination.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/resilience"
)

const (
	// MaxResultsCap bounds every search regardless of caller or configuration
	MaxResultsCap = 5

	providerName = "search"
	maxBodyBytes = 1 << 20
)

// Topic kinds issued for a destination
const (
	KindAttractions = "attractions"
	KindRestaurants = "restaurants"
	KindWeather     = "weather"
)

// Result is one ranked search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content"`
}

// TopicResults groups the results for one destination topic query
type TopicResults struct {
	Topic   string
	Kind    string
	Results []Result
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Client searches the web through a Tavily-compatible API
type Client struct {
	apiKey        string
	endpoint      string
	maxResults    int
	snippetChars  int
	itemsPerTopic int
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewClient creates a web search client from search configuration
func NewClient(cfg config.SearchConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	endpoint := ""
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		endpoint = base + "/search"
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if config.IsPlaceholder(apiKey) {
		apiKey = ""
	}

	return &Client{
		apiKey:        apiKey,
		endpoint:      endpoint,
		maxResults:    clamp(cfg.MaxResults, 3),
		snippetChars:  positiveOr(cfg.SnippetChars, 200),
		itemsPerTopic: positiveOr(cfg.ItemsPerTopic, 2),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

// Configured reports whether the client has credentials and an endpoint
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.endpoint != ""
}

// Search returns at most maxResults hits for the query with truncated
// snippets. Any failure yields an empty result.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []Result {
	if !c.Configured() || strings.TrimSpace(query) == "" {
		return nil
	}

	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	maxResults = clamp(maxResults, c.maxResults)

	results, err := c.search(ctx, query, maxResults)
	if err != nil {
		c.logger.Warn("Web search failed, continuing without live data",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for i := range results {
		results[i].Title = strings.TrimSpace(results[i].Title)
		results[i].Content = Truncate(strings.TrimSpace(results[i].Content), c.snippetChars)
	}

	c.logger.Debug("Web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results
}

// SearchTopics looks up attractions, restaurants and weather for a location
// concurrently. Topics are returned in that fixed order, each holding at most
// the configured number of items; topics that failed are omitted.
func (c *Client) SearchTopics(ctx context.Context, location string) []TopicResults {
	if !c.Configured() || strings.TrimSpace(location) == "" {
		return nil
	}

	topics := DestinationTopics(location)
	collected := make([]TopicResults, len(topics))

	var g errgroup.Group
	for i, topic := range topics {
		g.Go(func() error {
			results := c.Search(ctx, topic.Topic, c.maxResults)
			if len(results) > c.itemsPerTopic {
				results = results[:c.itemsPerTopic]
			}
			collected[i] = TopicResults{Topic: topic.Topic, Kind: topic.Kind, Results: results}
			return nil
		})
	}
	_ = g.Wait()

	var out []TopicResults
	for _, topic := range collected {
		if len(topic.Results) > 0 {
			out = append(out, topic)
		}
	}
	return out
}

// DestinationTopics returns the topic queries issued for a location
func DestinationTopics(location string) []TopicResults {
	return []TopicResults{
		{Topic: fmt.Sprintf("top attractions and things to do in %s", location), Kind: KindAttractions},
		{Topic: fmt.Sprintf("best restaurants in %s", location), Kind: KindRestaurants},
		{Topic: fmt.Sprintf("current weather forecast %s", location), Kind: KindWeather},
	}
}

func (c *Client) search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	payload, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, resilience.NewProviderUnavailableError(providerName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.ClassifyProviderFailure(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.ClassifyProviderFailure(providerName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewProviderError(providerName, resp.StatusCode,
			fmt.Errorf("search returned status %d", resp.StatusCode))
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, resilience.NewProviderError(providerName, resp.StatusCode,
			fmt.Errorf("failed to decode search response: %w", err))
	}

	return decoded.Results, nil
}

// Truncate shortens text to at most limit runes, marking the cut with "..."
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return strings.TrimRightFunc(string(runes[:limit]), func(r rune) bool { return r == ' ' }) + "..."
}

func clamp(n, fallback int) int {
	if n <= 0 {
		n = fallback
	}
	if n > MaxResultsCap {
		n = MaxResultsCap
	}
	return n
}

func positiveOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
