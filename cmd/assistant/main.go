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

// Package main provides the travel assistant service binary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/travel-assistant/internal/api"
	"github.com/your-org/travel-assistant/internal/assistant"
	"github.com/your-org/travel-assistant/internal/booking"
	"github.com/your-org/travel-assistant/internal/config"
	"github.com/your-org/travel-assistant/internal/health"
	"github.com/your-org/travel-assistant/internal/interactions"
	"github.com/your-org/travel-assistant/internal/llm"
	"github.com/your-org/travel-assistant/internal/websearch"
)

const (
	shutdownTimeout    = 10 * time.Second
	healthCheckTimeout = 5 * time.Second
	logFileName        = "travel-assistant.log"
)

var version = "1.0.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "assistant",
		Short:         "Travel assistant backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newConfigCommand(&configPath))
	return rootCmd
}

func newServeCommand(configPath *string) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				if port <= 0 || port > 65535 {
					return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
				}
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	return cmd
}

func newConfigCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, false)
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg)
		},
	}
}

// loadConfig reads .env (when present) before viper looks at the environment
func loadConfig(configPath string, validate bool) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: validate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func printConfig(w io.Writer, cfg *config.Config) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(cfg.MaskSensitiveValues())
}

// application holds the wired components of one server process
type application struct {
	router       *gin.Engine
	invoker      *llm.Invoker
	interactions *interactions.Logger
}

func (a *application) Close() error {
	return errors.Join(a.invoker.Close(), a.interactions.Close())
}

func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	bookingClient := booking.NewClient(cfg.Backend, logger)
	searchClient := websearch.NewClient(cfg.Search, logger)
	invoker := llm.NewInvokerFromConfig(ctx, cfg, logger)

	interactionLogger, err := interactions.NewLogger(cfg.Interactions, logger)
	if err != nil {
		_ = invoker.Close()
		return nil, fmt.Errorf("failed to create interaction logger: %w", err)
	}

	travelAssistant := assistant.New(assistant.Dependencies{
		Bookings:  bookingClient,
		Search:    searchClient,
		Generator: invoker,
	}, assistant.Options{
		MaxResponseChars: cfg.Model.MaxResponseChars,
	}, logger)

	healthManager := health.NewManager(api.ServiceName, version, logger)
	healthManager.SetTimeout(healthCheckTimeout)
	healthManager.AddChecker("model", health.ProviderChecker("model", invoker.Configured(), modelReachability(invoker)))
	healthManager.AddChecker("web_search", health.ProviderChecker("tavily", searchClient.Configured(), nil))
	healthManager.AddChecker("backend", health.ProviderChecker("backend", bookingClient.Configured(), nil))
	if interactionLogger.Enabled() {
		healthManager.AddChecker("interactions", health.StorageChecker(cfg.Interactions.StorageType, interactionLogger.Ping))
	}

	handler := api.NewHandler(api.Options{
		Assistant:           travelAssistant,
		Models:              invoker,
		SearchConfigured:    searchClient.Configured(),
		BackendConfigured:   bookingClient.Configured(),
		Interactions:        interactionLogger,
		Health:              healthManager,
		StrictProviderCheck: cfg.Server.StrictProviderCheck,
		Version:             version,
	}, logger)

	return &application{
		router:       api.NewRouter(cfg.Server, handler, logger),
		invoker:      invoker,
		interactions: interactionLogger,
	}, nil
}

// modelReachability succeeds when at least one configured provider is reachable
func modelReachability(invoker *llm.Invoker) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		for _, status := range invoker.Status(ctx) {
			if status.Reachable {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %s", status.Name, status.Error))
		}
		if len(errs) == 0 {
			return llm.ErrProviderNotConfigured
		}
		return errors.Join(errs...)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := initializeLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded",
		zap.String("model_provider", masked.Model.Provider),
		zap.String("fallback_provider", masked.Model.FallbackProvider),
		zap.String("openai_api_key", masked.OpenAI.APIKey),
		zap.String("gemini_api_key", masked.Gemini.APIKey),
		zap.String("search_api_key", masked.Search.APIKey),
		zap.Bool("search_configured", cfg.SearchConfigured()),
		zap.String("backend_url", masked.Backend.BaseURL),
		zap.String("interaction_storage", masked.Interactions.StorageType))

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Failed to release resources", zap.Error(err))
		}
	}()

	if !app.invoker.Configured() {
		logger.Warn("No model provider configured, generation requests will return degraded responses",
			zap.Bool("strict_provider_check", cfg.Server.StrictProviderCheck))
	}

	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting travel assistant service",
			zap.String("address", server.Addr),
			zap.String("version", version))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down travel assistant service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{logFileName}
		zapConfig.ErrorOutputPaths = []string{logFileName}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
