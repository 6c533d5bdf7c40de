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

// Package api exposes the travel assistant over HTTP
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/travel-assistant/internal/assistant"
	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/health"
	"github.com/your-org/travel-assistant/internal/interactions"
	"github.com/your-org/travel-assistant/internal/llm"
	"github.com/your-org/travel-assistant/internal/resilience"
	"github.com/your-org/travel-assistant/internal/synth"
)

const (
	// ServiceName identifies the service in banners and health reports
	ServiceName = "travel-assistant"

	maxQueryLength = 2000
	statusTimeout  = 5 * time.Second
)

// ModelReporter reports model provider configuration and reachability
type ModelReporter interface {
	Status(ctx context.Context) []llm.ProviderStatus
}

// PlanRequest is the body of a travel plan request
type PlanRequest struct {
	Query       string             `json:"query"`
	UserID      string             `json:"userId,omitempty"`
	Preferences *synth.Preferences `json:"preferences,omitempty"`
}

// PlanResponse is the answer to a travel plan request
type PlanResponse struct {
	Response  string `json:"response"`
	Degraded  bool   `json:"degraded"`
	Category  string `json:"category,omitempty"`
	RequestID string `json:"request_id"`
}

// PackingRequest asks for a packing checklist
type PackingRequest struct {
	Location string `json:"location"`
}

// RestaurantRequest asks for restaurant suggestions
type RestaurantRequest struct {
	Location string   `json:"location"`
	Dietary  []string `json:"dietary,omitempty"`
}

// Options holds everything the handler serves from
type Options struct {
	Assistant           *assistant.Assistant
	Models              ModelReporter
	SearchConfigured    bool
	BackendConfigured   bool
	Interactions        *interactions.Logger
	Health              *health.Manager
	StrictProviderCheck bool
	Version             string
}

// Handler serves the assistant endpoints
type Handler struct {
	opts         Options
	errorHandler *resilience.ErrorHandler
	logger       *zap.Logger
}

// NewHandler creates a handler
func NewHandler(opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Assistant == nil {
		opts.Assistant = assistant.New(assistant.Dependencies{}, assistant.Options{}, logger)
	}
	if opts.Health == nil {
		opts.Health = health.NewManager(ServiceName, opts.Version, logger)
	}

	return &Handler{
		opts:         opts,
		errorHandler: resilience.NewErrorHandler(logger),
		logger:       logger,
	}
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(cfg config.ServerConfig, h *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(Recovery(logger))
	router.Use(AccessLog(logger))
	router.Use(CORS(cfg.AllowedOrigins))

	h.Register(router)
	return router
}

// Register mounts the routes on router
func (h *Handler) Register(router gin.IRouter) {
	router.GET("/", h.handleRoot)
	router.GET("/health", h.opts.Health.GinHandler())

	ai := router.Group("/api/ai")
	ai.POST("/plan", h.handlePlan)
	ai.GET("/test", h.handleStatus)
	ai.POST("/packing", h.handlePacking)
	ai.POST("/restaurants", h.handleRestaurants)
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": ServiceName,
		"version": h.opts.Version,
		"status":  "running",
	})
}

func (h *Handler) handlePlan(c *gin.Context) {
	requestID := GetRequestID(c)

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request format", err)
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.badRequest(c, "Query cannot be empty", nil)
		return
	}
	if len(req.Query) > maxQueryLength {
		h.badRequest(c, "Query is too long", nil)
		return
	}

	if h.opts.StrictProviderCheck && !h.opts.Assistant.GeneratorConfigured() {
		serviceErr := resilience.NewServiceUnavailableError(
			"No model provider is configured. Set MODEL_PROVIDER and its credentials, or start Ollama.",
			llm.ErrProviderNotConfigured)
		h.errorHandler.LogError(serviceErr, "plan", zap.String("request_id", requestID))
		c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(requestID))
		return
	}

	result := h.opts.Assistant.Respond(c.Request.Context(), assistant.Query{
		Text:        req.Query,
		UserID:      req.UserID,
		Preferences: req.Preferences,
	})

	h.record(requestID, req.UserID, result)

	c.JSON(http.StatusOK, PlanResponse{
		Response:  result.Text,
		Degraded:  result.Degraded,
		Category:  string(result.Category),
		RequestID: requestID,
	})
}

func (h *Handler) record(requestID, userID string, result *assistant.Result) {
	err := h.opts.Interactions.Log(interactions.Record{
		RequestID: requestID,
		Category:  string(result.Category),
		Path:      result.Path,
		Provider:  result.Provider,
		Degraded:  result.Degraded,
		HasUser:   assistant.HasUser(userID),
		LatencyMs: result.ExecutionTimeMs,
	})
	if err != nil {
		h.logger.Warn("Failed to record interaction",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func (h *Handler) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()

	var providers []llm.ProviderStatus
	if h.opts.Models != nil {
		providers = h.opts.Models.Status(ctx)
	}
	if providers == nil {
		providers = []llm.ProviderStatus{}
	}

	configured, reachable := false, false
	for _, p := range providers {
		configured = configured || p.Configured
		reachable = reachable || p.Reachable
	}

	response := gin.H{
		"status": "AI service is running",
		"model": gin.H{
			"configured": configured,
			"reachable":  reachable,
			"providers":  providers,
		},
		"web_search": gin.H{
			"provider":   "tavily",
			"configured": h.opts.SearchConfigured,
		},
		"backend": gin.H{
			"configured": h.opts.BackendConfigured,
		},
	}

	if stats, err := h.opts.Interactions.Stats(); err != nil {
		h.logger.Warn("Failed to read interaction stats", zap.Error(err))
	} else {
		response["interactions"] = stats
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) handlePacking(c *gin.Context) {
	var req PackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request format", err)
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		h.badRequest(c, "Location cannot be empty", nil)
		return
	}

	checklist := h.opts.Assistant.PackingChecklist(c.Request.Context(), req.Location)
	c.JSON(http.StatusOK, gin.H{
		"checklist":  checklist.Items,
		"location":   checklist.Location,
		"request_id": GetRequestID(c),
	})
}

func (h *Handler) handleRestaurants(c *gin.Context) {
	var req RestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request format", err)
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		h.badRequest(c, "Location cannot be empty", nil)
		return
	}

	result := h.opts.Assistant.Restaurants(c.Request.Context(), req.Location, req.Dietary)
	c.JSON(http.StatusOK, gin.H{
		"response":   result.Text,
		"degraded":   result.Degraded,
		"request_id": GetRequestID(c),
	})
}

func (h *Handler) badRequest(c *gin.Context, message string, err error) {
	serviceErr := resilience.NewBadRequestError(message, err)
	h.logger.Warn("Invalid request",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", GetRequestID(c)),
		zap.Error(serviceErr))
	c.JSON(serviceErr.StatusCode, serviceErr.ToErrorResponse(GetRequestID(c)))
}
