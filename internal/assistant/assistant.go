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

// Package assistant turns a traveler's query into an answer. It classifies
// the query, answers template and booking queries directly, and otherwise
// assembles context for a model, degrading to a fixed message when
// generation fails.
package assistant

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/booking"
	"github.com/your-org/travel-assistant/internal/classifier"
	"github.com/your-org/travel-assistant/internal/llm"
	"github.com/your-org/travel-assistant/internal/resilience"
	"github.com/your-org/travel-assistant/internal/synth"
	"github.com/your-org/travel-assistant/internal/websearch"
)

// Paths a response can take
const (
	PathTemplate   = "template"
	PathBooking    = "booking"
	PathGeneration = "generation"
	PathDegraded   = "degraded"
)

// Service names recorded in Result.ServicesUsed
const (
	ServiceBackend = "backend"
	ServiceSearch  = "search"
)

const defaultMaxResponseChars = 4000

// BookingSource fetches a user's bookings. Failures yield an empty slice.
type BookingSource interface {
	Fetch(ctx context.Context, userID string) []booking.Booking
}

// SearchSource looks up live destination data. Failures yield empty results.
type SearchSource interface {
	Configured() bool
	Search(ctx context.Context, query string, maxResults int) []websearch.Result
	SearchTopics(ctx context.Context, location string) []websearch.TopicResults
}

// Generator produces model text for a prompt
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, prompt string) (*llm.Generation, error)
}

// Query is one traveler request
type Query struct {
	Text        string
	UserID      string
	Preferences *synth.Preferences
}

// Result is the answer to a query plus how it was produced
type Result struct {
	Text            string              `json:"response"`
	Degraded        bool                `json:"degraded"`
	Category        classifier.Category `json:"category,omitempty"`
	Path            string              `json:"path"`
	Provider        string              `json:"provider,omitempty"`
	ServicesUsed    []string            `json:"services_used"`
	FallbackUsed    bool                `json:"fallback_used"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
}

// Dependencies are the collaborators the assistant calls. Nil collaborators
// are treated as unavailable.
type Dependencies struct {
	Classifier *classifier.QueryClassifier
	Bookings   BookingSource
	Search     SearchSource
	Generator  Generator
}

// Options bound the final response
type Options struct {
	MaxResponseChars int
}

// Assistant is the fallback chain controller
type Assistant struct {
	classifier *classifier.QueryClassifier
	bookings   BookingSource
	search     SearchSource
	generator  Generator
	opts       Options
	logger     *zap.Logger
}

// New creates an assistant
func New(deps Dependencies, opts Options, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.NewQueryClassifier()
	}
	if opts.MaxResponseChars <= 0 {
		opts.MaxResponseChars = defaultMaxResponseChars
	}

	return &Assistant{
		classifier: deps.Classifier,
		bookings:   deps.Bookings,
		search:     deps.Search,
		generator:  deps.Generator,
		opts:       opts,
		logger:     logger,
	}
}

// GeneratorConfigured reports whether any model provider is available
func (a *Assistant) GeneratorConfigured() bool {
	return a.generator != nil && a.generator.Configured()
}

// Respond answers the query. It always returns a non-empty response.
func (a *Assistant) Respond(ctx context.Context, q Query) *Result {
	startTime := time.Now()
	classification := a.classifier.Classify(q.Text)

	a.logger.Info("Processing query",
		zap.String("category", string(classification.Category)),
		zap.String("matched_rule", classification.MatchedRule),
		zap.Bool("has_user", HasUser(q.UserID)))
	a.logger.Debug("Query text", zap.String("query", q.Text))

	result := &Result{
		Category:     classification.Category,
		ServicesUsed: []string{},
	}

	switch {
	case classification.Category == classifier.CategoryBookingStatus:
		a.respondBooking(ctx, q, classification, result)
	case !classification.NeedsGeneration():
		result.Path = PathTemplate
		result.Text, _ = templateText(classification.Category)
	default:
		a.respondGenerated(ctx, q, classification, result)
	}

	a.finalize(result)
	result.ExecutionTimeMs = time.Since(startTime).Milliseconds()

	a.logger.Info("Query processed",
		zap.String("category", string(result.Category)),
		zap.String("path", result.Path),
		zap.String("provider", result.Provider),
		zap.Bool("degraded", result.Degraded),
		zap.Strings("services_used", result.ServicesUsed),
		zap.Int64("execution_time_ms", result.ExecutionTimeMs))

	return result
}

func (a *Assistant) respondBooking(ctx context.Context, q Query, c classifier.Classification, result *Result) {
	result.Path = PathBooking

	if !HasUser(q.UserID) {
		result.Text = LoginRequiredMessage
		return
	}

	var bookings []booking.Booking
	if a.bookings != nil {
		bookings = a.bookings.Fetch(ctx, strings.TrimSpace(q.UserID))
		result.ServicesUsed = append(result.ServicesUsed, ServiceBackend)
	}

	result.Text = BookingText(c.StatusFilter, bookings)
}

func (a *Assistant) respondGenerated(ctx context.Context, q Query, c classifier.Classification, result *Result) {
	bookings, topics, searchAttempted := a.gatherContext(ctx, q, c, result)

	promptContext := synth.Assemble(synth.AssembleInput{
		Query:            q.Text,
		Classification:   c,
		Bookings:         bookings,
		Preferences:      q.Preferences,
		Search:           topics,
		SearchConfigured: a.searchConfigured(),
		SearchAttempted:  searchAttempted,
	})
	prompt := synth.BuildPrompt(promptContext)
	if err := synth.ValidatePrompt(prompt); err != nil {
		a.logger.Warn("Assembled prompt is invalid, returning degraded response", zap.Error(err))
		a.degrade(result)
		return
	}

	a.logger.Debug("Prompt assembled",
		zap.String("location", promptContext.Location),
		zap.Bool("has_booking", promptContext.BookingSummary != ""),
		zap.Bool("has_weather", promptContext.HasWeather),
		zap.Int("estimated_tokens", synth.EstimateTokens(prompt)))

	a.generate(ctx, prompt, result)
}

// gatherContext fetches the user's bookings, then searches once for the
// location they resolve to. Without a user the query location is searched
// directly.
func (a *Assistant) gatherContext(ctx context.Context, q Query, c classifier.Classification, result *Result) ([]booking.Booking, []websearch.TopicResults, bool) {
	var bookings []booking.Booking
	if a.bookings != nil && HasUser(q.UserID) {
		bookings = a.bookings.Fetch(ctx, q.UserID)
		result.ServicesUsed = append(result.ServicesUsed, ServiceBackend)
	}

	location := synth.ResolveLocation(q.Text, bookings, c.Destination)
	if !a.searchConfigured() || location == synth.PlaceholderLocation {
		return bookings, nil, false
	}

	a.logger.Debug("Searching live destination data",
		zap.String("location", location),
		zap.Bool("from_booking", len(bookings) > 0))
	topics := a.search.SearchTopics(ctx, location)
	result.ServicesUsed = append(result.ServicesUsed, ServiceSearch)
	return bookings, topics, true
}

// generate invokes the model and degrades on any failure
func (a *Assistant) generate(ctx context.Context, prompt string, result *Result) {
	if !a.GeneratorConfigured() {
		a.logger.Warn("No model provider configured, returning degraded response")
		a.degrade(result)
		return
	}

	generation, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("Model generation failed, returning degraded response",
			zap.Bool("provider_unavailable", resilience.IsProviderUnavailable(err)),
			zap.Bool("provider_error", resilience.IsProviderError(err)),
			zap.Error(err))
		a.degrade(result)
		return
	}

	result.Path = PathGeneration
	result.Text = generation.Text
	result.Provider = generation.Provider
	result.FallbackUsed = generation.FallbackUsed
	result.ServicesUsed = append(result.ServicesUsed, generation.Provider)
}

func (a *Assistant) degrade(result *Result) {
	result.Path = PathDegraded
	result.Degraded = true
	result.Text = DegradedMessage
}

// finalize trims and caps the text; an empty answer is never returned
func (a *Assistant) finalize(result *Result) {
	result.Text = llm.Cap(strings.TrimSpace(result.Text), a.opts.MaxResponseChars)
	if result.Text == "" {
		a.degrade(result)
	}
}

func (a *Assistant) searchConfigured() bool {
	return a.search != nil && a.search.Configured()
}

// HasUser reports whether userID identifies a logged-in user
func HasUser(userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && userID != booking.AnonymousUserID
}
